package domain

// DatasetReader интерфейс для чтения выборок
type DatasetReader interface {
	ReadDataset(dir, imagesFile, labelsFile string) (*Dataset, error)
}
