package main

import (
	"github.com/AbelCoplet/llama-cag-n8N/internal/cli"
	"github.com/AbelCoplet/llama-cag-n8N/pkg/logger_i"
)

func main() {
	logger_i.Init()
	cli.Execute()
}
