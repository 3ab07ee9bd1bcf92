package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/DRSN-tech/visual-search/pkg/logger"
)

//	@title			Visual Search API
//	@version		1.0
//	@description	Поиск визуально похожих товаров по изображению, ссылке или товару каталога.

//	@BasePath	/api/v1

func main() {
	log := logger.NewSlogLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(log).ExecuteContext(ctx); err != nil {
		log.Errorf(err, "command failed")
		stop()
		os.Exit(1)
	}
}
