package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/fetch-cache/fetch-cache/internal/config"
)

// InitLogger 根据全局配置初始化 JSON 结构化日志。日志文件不可写时服务
// 不应因此拒绝启动——缓存请求仍能正常服务，输出降级到 stdout 并留痕。
func InitLogger(cfg config.GlobalConfig) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("无法解析日志级别: %w", err)
	}

	output, fallbackErr := logDestination(cfg)
	if fallbackErr != nil {
		fmt.Fprintf(os.Stderr, "fetch-cache 日志降级到 stdout: %v\n", fallbackErr)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(output)
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})

	logrus.SetFormatter(logger.Formatter)
	logrus.SetOutput(logger.Out)
	logrus.SetLevel(logger.GetLevel())

	if fallbackErr != nil {
		logger.WithFields(logrus.Fields{
			"action":   "logger_fallback",
			"path":     cfg.LogFilePath,
			"fallback": "stdout",
		}).Warn(fallbackErr.Error())
	}

	return logger, nil
}

// logDestination 选择日志输出：未配置文件路径时直接写 stdout，配置了则走
// lumberjack 滚动文件；目录创建失败时返回 stdout 与失败原因。
func logDestination(cfg config.GlobalConfig) (io.Writer, error) {
	if cfg.LogFilePath == "" {
		return os.Stdout, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogFilePath), 0o755); err != nil {
		return os.Stdout, fmt.Errorf("创建日志目录失败: %w", err)
	}

	return &lumberjack.Logger{
		Filename:   cfg.LogFilePath,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		Compress:   cfg.LogCompress,
		LocalTime:  true,
	}, nil
}
