package log

import (
	"go.uber.org/zap/zapcore"
)

// LogOptions 日志配置选项
// 专注于客户端基础设施核心功能的简化配置
type LogOptions struct {
	// === 基础配置 ===
	Level     string `json:"level"`      // 日志级别 (debug, info, warn, error)
	ToConsole bool   `json:"to_console"` // 是否输出到控制台
	FilePath  string `json:"file_path"`  // 日志文件路径，为空时不写文件

	// === 基础轮转配置 ===
	MaxSize    int  `json:"max_size"`    // 单个日志文件最大大小(MB)
	MaxBackups int  `json:"max_backups"` // 最大备份文件数
	MaxAge     int  `json:"max_age"`     // 日志文件最大保留天数
	Compress   bool `json:"compress"`    // 是否压缩历史日志文件

	// === 调试配置 ===
	EnableCaller bool `json:"enable_caller"` // 是否启用调用者信息
}

// Config 日志配置实现
type Config struct {
	options *LogOptions
}

// New 创建日志配置实现
// userOptions 为 nil 时使用默认配置，否则用用户配置覆盖默认值
func New(userOptions *LogOptions) *Config {
	options := createDefaultLogOptions()

	if userOptions != nil {
		applyUserLogOptions(options, userOptions)
	}

	return &Config{options: options}
}

// GetLevel 返回解析后的zap日志级别
func (c *Config) GetLevel() zapcore.Level {
	if level, ok := levelMap[c.options.Level]; ok {
		return level
	}
	return zapcore.InfoLevel
}

// GetOptions 返回完整的日志选项
func (c *Config) GetOptions() *LogOptions {
	return c.options
}

// levelMap 级别名称到zap级别的映射
var levelMap = map[string]zapcore.Level{
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
}

// applyUserLogOptions 用用户配置覆盖默认配置
func applyUserLogOptions(options *LogOptions, user *LogOptions) {
	if user.Level != "" {
		options.Level = user.Level
	}
	options.ToConsole = user.ToConsole
	if user.FilePath != "" {
		options.FilePath = user.FilePath
	}
	if user.MaxSize > 0 {
		options.MaxSize = user.MaxSize
	}
	if user.MaxBackups > 0 {
		options.MaxBackups = user.MaxBackups
	}
	if user.MaxAge > 0 {
		options.MaxAge = user.MaxAge
	}
	options.Compress = user.Compress
	options.EnableCaller = user.EnableCaller
}
