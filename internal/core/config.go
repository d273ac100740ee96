package core

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"github.com/sunbid/tendercrawl/internal/models"
)

// Config 应用程序配置
type Config struct {
	Site    models.SiteConfig   `mapstructure:"site"`
	Crawl   models.CrawlConfig  `mapstructure:"crawl"`
	Ollama  models.OllamaConfig `mapstructure:"ollama"`
	Company CompanyConfig       `mapstructure:"company"`
	DB      DBConfig            `mapstructure:"db"`
	Logging LoggingConfig       `mapstructure:"logging"`
	Output  OutputConfig        `mapstructure:"output"`
	Headers map[string]string   `mapstructure:"headers"`
}

// CompanyConfig 本公司画像,用于评估公告匹配度
type CompanyConfig struct {
	Profile string `mapstructure:"profile"`
}

// DBConfig 存储配置
type DBConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	LogDir string `mapstructure:"log_dir"`
}

// OutputConfig 导出配置
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// LoadConfig 加载配置文件
// configPath为空时依次搜索 ./configs、当前目录与 ~/.tendercrawl
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".tendercrawl"))
		}
	}

	setDefaults(v)

	// Ollama地址与模型允许环境变量覆盖,便于容器部署
	_ = v.BindEnv("ollama.base_url", "OLLAMA_BASE_URL")
	_ = v.BindEnv("ollama.model", "OLLAMA_MODEL")

	if err := v.ReadInConfig(); err != nil {
		// 配置文件不存在时直接使用默认值
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := config.Site.Validate(); err != nil {
		return nil, fmt.Errorf("站点配置无效: %w", err)
	}
	if err := config.Crawl.Validate(); err != nil {
		return nil, fmt.Errorf("爬取配置无效: %w", err)
	}

	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 目标站点
	v.SetDefault("site.name", "powerchina")
	v.SetDefault("site.base_url", "https://bid.powerchina.cn")
	v.SetDefault("site.list_url", "https://bid.powerchina.cn/consult/notice")

	// 爬取参数
	v.SetDefault("crawl.delay", 1.0)
	v.SetDefault("crawl.fetch_timeout", 15)
	v.SetDefault("crawl.render_timeout_ms", 60000)
	v.SetDefault("crawl.render_retries", 2)
	v.SetDefault("crawl.min_content_length", 1000)
	v.SetDefault("crawl.max_pages", 3)
	v.SetDefault("crawl.max_notices", 0)
	v.SetDefault("crawl.max_workers", 2)
	v.SetDefault("crawl.headless", true)

	// Ollama分析
	v.SetDefault("ollama.base_url", "http://localhost:11434")
	v.SetDefault("ollama.model", "qwen2.5:7b")
	v.SetDefault("ollama.timeout_ms", 60000)

	v.SetDefault("company.profile", "主营水利水电工程施工总承包,具备一级施工资质,业务覆盖西南与华中地区,承接1000万元以上规模项目")

	// 存储与输出
	v.SetDefault("db.path", "data/tendercrawl.db")
	v.SetDefault("output.dir", "output")

	// 日志
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
}

// MergeCLIFlags 合并命令行参数,命令行优先于配置文件
func (c *Config) MergeCLIFlags(maxNotices int, delay float64, headless bool, outputDir string) {
	if maxNotices > 0 {
		c.Crawl.MaxNotices = maxNotices
	}
	if delay >= 0 {
		c.Crawl.Delay = delay
	}
	c.Crawl.Headless = headless
	if outputDir != "" {
		c.Output.Dir = outputDir
	}
}
