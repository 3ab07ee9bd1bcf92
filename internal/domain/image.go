package domain

// Image описывает изображение, которое хранится в S3
type Image struct {
	ID          string // uuid
	Bucket      string
	ObjectKey   string
	Bytes       []byte
	Size        int64
	ContentType string // Example: "image/jpeg"
}

func NewImage(id, bucket, objectKey string, data []byte, contentType string) *Image {
	return &Image{
		ID:          id,
		Bucket:      bucket,
		ObjectKey:   objectKey,
		Bytes:       data,
		Size:        int64(len(data)),
		ContentType: contentType,
	}
}

// StoredImage — результат загрузки изображения в хранилище: публичный адрес и ключ объекта.
type StoredImage struct {
	URL string
	Key string
}

func NewStoredImage(url, key string) *StoredImage {
	return &StoredImage{URL: url, Key: key}
}
