package configs

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration loaded from yaml.
type Config struct {
	Server struct {
		IP   string `yaml:"ip"`
		Port int    `yaml:"port"`
		Auth struct {
			Enabled bool   `yaml:"enabled"`
			Token   string `yaml:"token"`
		} `yaml:"auth"`
		SaveUploads bool `yaml:"save_uploads"`
	} `yaml:"server"`

	Log struct {
		LogFormat string `yaml:"log_format"`
		LogLevel  string `yaml:"log_level"`
		LogDir    string `yaml:"log_dir"`
		LogFile   string `yaml:"log_file"`
	} `yaml:"log"`

	Model ModelConfig `yaml:"model"`

	SelectedModule map[string]string `yaml:"selected_module"`

	LLM   map[string]LLMConfig  `yaml:"LLM"`
	VLLLM map[string]VLLMConfig `yaml:"VLLLM"`
}

// ModelConfig describes the classification model artifact and the
// inference runtime that serves it.
type ModelConfig struct {
	RepoID      string   `yaml:"repo_id"`
	Filename    string   `yaml:"filename"`
	CacheDir    string   `yaml:"cache_dir"`
	HubEndpoint string   `yaml:"hub_endpoint"`
	ServingURL  string   `yaml:"serving_url"`
	ServingName string   `yaml:"serving_name"`
	InputSize   int      `yaml:"input_size"`
	ClassNames  []string `yaml:"class_names"`
}

// LLMConfig holds the settings of one text LLM provider.
type LLMConfig struct {
	Type        string                 `yaml:"type"`
	ModelName   string                 `yaml:"model_name"`
	BaseURL     string                 `yaml:"url"`
	APIKey      string                 `yaml:"api_key"`
	Temperature float64                `yaml:"temperature"`
	MaxTokens   int                    `yaml:"max_tokens"`
	TopP        float64                `yaml:"top_p"`
	Extra       map[string]interface{} `yaml:",inline"`
}

// VLLMConfig holds the settings of one vision language model provider.
type VLLMConfig struct {
	Type        string                 `yaml:"type"`
	ModelName   string                 `yaml:"model_name"`
	BaseURL     string                 `yaml:"url"`
	APIKey      string                 `yaml:"api_key"`
	Temperature float64                `yaml:"temperature"`
	MaxTokens   int                    `yaml:"max_tokens"`
	TopP        float64                `yaml:"top_p"`
	Extra       map[string]interface{} `yaml:",inline"`
}

// LoadConfig loads the configuration file, preferring .config.yaml.
func LoadConfig() (*Config, string, error) {
	path := ".config.yaml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path = "config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, err
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, path, err
	}
	config.ApplyDefaults()

	return config, path, nil
}

// ApplyDefaults fills the model section with the deployment defaults.
func (c *Config) ApplyDefaults() {
	if c.Model.RepoID == "" {
		c.Model.RepoID = "SoumyadeepOSD123/vgg16-lung-cancer-model"
	}
	if c.Model.Filename == "" {
		c.Model.Filename = "VGG16.h5"
	}
	if c.Model.CacheDir == "" {
		c.Model.CacheDir = "models"
	}
	if c.Model.HubEndpoint == "" {
		c.Model.HubEndpoint = "https://huggingface.co"
	}
	if c.Model.ServingName == "" {
		c.Model.ServingName = "lung_cancer"
	}
	if c.Model.InputSize <= 0 {
		c.Model.InputSize = 224
	}
	if len(c.Model.ClassNames) == 0 {
		// Label order is fixed by the output layer of the deployed
		// artifact, misspelling included.
		c.Model.ClassNames = []string{"Bengin cases", "Malignant cases", "Normal cases"}
	}
}

// ResolveSecrets fills missing API keys from the environment. The selected
// LLM and VLLLM providers must end up with a key, otherwise startup aborts.
func (c *Config) ResolveSecrets() error {
	for name, llm := range c.LLM {
		if llm.APIKey == "" {
			llm.APIKey = os.Getenv("LLM_API_KEY")
			c.LLM[name] = llm
		}
	}
	for name, vlllm := range c.VLLLM {
		if vlllm.APIKey == "" {
			vlllm.APIKey = os.Getenv("VLLM_API_KEY")
			if vlllm.APIKey == "" {
				vlllm.APIKey = os.Getenv("LLM_API_KEY")
			}
			c.VLLLM[name] = vlllm
		}
	}

	if selected := c.SelectedModule["LLM"]; selected != "" {
		if llm, ok := c.LLM[selected]; !ok || llm.APIKey == "" {
			return fmt.Errorf("LLM provider %q has no API key (set LLM_API_KEY)", selected)
		}
	}
	if selected := c.SelectedModule["VLLLM"]; selected != "" {
		if vlllm, ok := c.VLLLM[selected]; !ok || vlllm.APIKey == "" {
			return fmt.Errorf("VLLLM provider %q has no API key (set VLLM_API_KEY)", selected)
		}
	}
	return nil
}
