package utils

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// logger.go - настройка логирования
//
// Назначение:
// Инициализация структурированного логирования на базе zap.
//
// Функции:
// - InitLogger: создать logger по конфигурации и установить его
//   глобальным (zap.ReplaceGlobals)
//   * Форматы: json, console
//   * Уровни: debug, info, warn, error
//   * Ротация лог-файлов через lumberjack
//
// Компоненты получают именованные логгеры через zap.L().Named("...").

// LoggerConfig - параметры инициализации логгера
type LoggerConfig struct {
	Level      string // debug | info | warn | error
	Format     string // json | console
	FilePath   string // пусто = только stdout
	MaxSizeMB  int    // размер файла до ротации
	MaxBackups int    // количество хранимых архивов
	MaxAgeDays int    // срок хранения архивов в днях
}

// InitLogger создает logger по конфигурации и делает его глобальным.
//
// При заданном FilePath пишет одновременно в stdout и в файл с ротацией.
//
// Возвращает: сам logger и ошибку при неизвестном уровне
func InitLogger(cfg LoggerConfig) (*zap.Logger, error) {
	level, err := parseLogLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if strings.EqualFold(cfg.Format, "console") {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	sinks := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	if cfg.FilePath != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		sinks = append(sinks, zapcore.AddSync(rotator))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(sinks...), level)
	logger := zap.New(core, zap.AddCaller())

	zap.ReplaceGlobals(logger)
	return logger, nil
}

func parseLogLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}
