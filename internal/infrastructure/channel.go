package infrastructure

import (
	"os"
	"syscall"
)

// Channel однонаправленный канал (pipe) с явным владением концами.
// Читатель видит конец потока только после закрытия всех дескрипторов
// записи во всех процессах, которые их держат.
type Channel struct {
	r, w *os.File
}

func NewChannel() (*Channel, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	return &Channel{r: r, w: w}, nil
}

func (c *Channel) Reader() *os.File { return c.r }
func (c *Channel) Writer() *os.File { return c.w }

// DupWriter возвращает ещё один независимый конец записи
func (c *Channel) DupWriter() (*os.File, error) { return DupFile(c.w) }

// DupReader возвращает ещё один независимый конец чтения
func (c *Channel) DupReader() (*os.File, error) { return DupFile(c.r) }

// CloseReader закрывает собственную копию конца чтения; повторный вызов ничего не делает
func (c *Channel) CloseReader() error {
	if c.r == nil {
		return nil
	}
	err := c.r.Close()
	c.r = nil
	return err
}

// CloseWriter закрывает собственную копию конца записи; повторный вызов ничего не делает
func (c *Channel) CloseWriter() error {
	if c.w == nil {
		return nil
	}
	err := c.w.Close()
	c.w = nil
	return err
}

func (c *Channel) Close() error {
	errR := c.CloseReader()
	errW := c.CloseWriter()
	if errR != nil {
		return errR
	}
	return errW
}

// DupFile дублирует дескриптор f; новый дескриптор не наследуется при exec
func DupFile(f *os.File) (*os.File, error) {
	sc, err := f.SyscallConn()
	if err != nil {
		return nil, err
	}

	var fd int
	var dupErr error
	if err := sc.Control(func(raw uintptr) {
		fd, dupErr = syscall.Dup(int(raw))
		if dupErr == nil {
			syscall.CloseOnExec(fd)
		}
	}); err != nil {
		return nil, err
	}
	if dupErr != nil {
		return nil, os.NewSyscallError("dup", dupErr)
	}
	return os.NewFile(uintptr(fd), f.Name()), nil
}
