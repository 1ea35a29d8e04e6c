package log

// 日志配置默认值
// 客户端SDK默认只输出到控制台，不落盘；文件输出由调用方显式开启
const (
	// defaultLogLevel 默认日志级别设为"info"
	// info级别平衡了信息量和性能，记录重要事件但不过于详细
	defaultLogLevel = "info"

	// defaultToConsole 默认启用控制台输出
	defaultToConsole = true

	// defaultMaxSize 单个日志文件最大大小(MB)
	defaultMaxSize = 100

	// defaultMaxBackups 最大备份文件数
	defaultMaxBackups = 10

	// defaultMaxAge 日志文件最大保留天数
	defaultMaxAge = 30

	// defaultCompress 默认不压缩历史日志
	defaultCompress = false
)

// createDefaultLogOptions 创建完整的默认日志配置
func createDefaultLogOptions() *LogOptions {
	return &LogOptions{
		Level:      defaultLogLevel,
		ToConsole:  defaultToConsole,
		FilePath:   "", // 默认不写文件
		MaxSize:    defaultMaxSize,
		MaxBackups: defaultMaxBackups,
		MaxAge:     defaultMaxAge,
		Compress:   defaultCompress,
	}
}
