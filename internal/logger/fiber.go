package logger

import (
	"io"
	"os"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
)

const accessFormat = "[FIBER] ${time} |${status}| ${latency} | ${ip} | ${method} ${path}\n"

// AccessLog 请求日志，同时写控制台和按天的日志文件
func AccessLog(file io.Writer) fiber.Handler {
	out := io.Writer(os.Stdout)
	if file != nil {
		out = io.MultiWriter(os.Stdout, file)
	}
	return fiberlogger.New(fiberlogger.Config{
		Format:     accessFormat,
		TimeFormat: "2006-01-02 15:04:05",
		Output:     out,
	})
}
