package main

import (
	"github.com/cinematch/core/internal/app"
	"github.com/cinematch/core/internal/config"
)

func main() {
	app.Go(config.Load())
}
