package app

import (
	"context"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/jimlawless/whereami"
)

const importChunkSize = 50

var importExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// Import загружает в каталог все изображения из dir как товары категории category.
// Имя товара берётся из имени файла без расширения.
func (a *App) Import(ctx context.Context, dir, category string) (*usecase.BulkAddProductsRes, error) {
	return importDir(ctx, a.productUC, a.logger, dir, category)
}

func importDir(ctx context.Context, uc usecase.ProductUC, log logger.Logger, dir, category string) (*usecase.BulkAddProductsRes, error) {
	items, err := collectImportItems(dir, category)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	if len(items) == 0 {
		return nil, e.Wrap(whereami.WhereAmI(), e.ErrNoProducts)
	}

	total := &usecase.BulkAddProductsRes{IDs: make([]string, 0, len(items))}
	for start := 0; start < len(items); start += importChunkSize {
		end := min(start+importChunkSize, len(items))

		res, err := uc.BulkAddProducts(ctx, &usecase.BulkAddProductsReq{Items: items[start:end]})
		if err != nil {
			return total, e.Wrap(whereami.WhereAmI(), err)
		}

		total.IDs = append(total.IDs, res.IDs...)
		total.Failed += res.Failed
		for _, itemErr := range res.Errors {
			total.Errors = append(total.Errors, usecase.BulkItemError{Index: start + itemErr.Index, Err: itemErr.Err})
		}
		log.Infof("import: %d/%d processed", end, len(items))
	}

	return total, nil
}

// collectImportItems читает изображения каталога в порядке имён файлов.
// Вложенные каталоги и файлы с другими расширениями пропускаются.
func collectImportItems(dir, category string) ([]usecase.AddProductReq, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	items := make([]usecase.AddProductReq, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(entry.Name()))
		mimeType, ok := importExtensions[ext]
		if !ok {
			continue
		}
		if byExt := mime.TypeByExtension(ext); strings.HasPrefix(byExt, "image/") {
			mimeType = byExt
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		items = append(items, usecase.AddProductReq{
			Name:     strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())),
			Category: category,
			Image:    usecase.NewProductImage(data, mimeType, int64(len(data)), entry.Name()),
		})
	}

	return items, nil
}
