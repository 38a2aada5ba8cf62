package domain

import "os"

// WorkerHandle запущенный воркер
type WorkerHandle interface {
	Ordinal() int
	PID() int
	Wait() error
}

// WorkerLauncher запускает воркер, передавая ему конец чтения его входного
// канала и конец записи общего выходного канала. Лаунчер не забирает
// владение переданными файлами: вызывающий закрывает свои копии сам.
type WorkerLauncher interface {
	Launch(ordinal int, in, out *os.File) (WorkerHandle, error)
}
