package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RecoveryAshes/docmirror/internal/models"
	"gopkg.in/yaml.v3"
)

func TestParseTerminology(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		key     string
		want    map[string]string
		wantErr bool
	}{
		{
			name: "平铺YAML",
			data: "FreeRTOS: ფრირტოსი\nWi-Fi: ვაიფაი\n",
			want: map[string]string{"FreeRTOS": "ფრირტოსი", "Wi-Fi": "ვაიფაი"},
		},
		{
			name: "嵌套在key下",
			data: "en_to_ka:\n  FreeRTOS: ფრირტოსი\nen_to_de:\n  FreeRTOS: FreeRTOS-DE\n",
			key:  "en_to_ka",
			want: map[string]string{"FreeRTOS": "ფრირტოსი"},
		},
		{
			name: "制表符缩进的JSON",
			data: "{\n\t\"en_to_ka\": {\n\t\t\"ESP-IDF\": \"ესპ-იდფ\"\n\t}\n}",
			key:  "en_to_ka",
			want: map[string]string{"ESP-IDF": "ესპ-იდფ"},
		},
		{
			name: "key不存在时按平铺处理并忽略嵌套段",
			data: "BLE: ბლე\nen_to_de:\n  BLE: BLE-DE\n",
			key:  "en_to_ka",
			want: map[string]string{"BLE": "ბლე"},
		},
		{
			name: "空术语被忽略",
			data: `{"": "x", " ADC ": "ადც"}`,
			want: map[string]string{"ADC": "ადც"},
		},
		{
			name: "空文件",
			data: "",
			want: map[string]string{},
		},
		{name: "key下不是映射", data: "en_to_ka: [a, b]\n", key: "en_to_ka", wantErr: true},
		{name: "译文不是字符串", data: "FreeRTOS: [a]\n", wantErr: true},
		{name: "JSON格式错误", data: `{"FreeRTOS": }`, wantErr: true},
		{name: "YAML格式错误", data: "a: b: c\n  - d", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTerminology([]byte(tt.data), tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTerminology() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseTerminology() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestLoadTerminology(t *testing.T) {
	dir := t.TempDir()

	t.Run("文件不存在返回空表", func(t *testing.T) {
		if got := LoadTerminology(filepath.Join(dir, "missing.yaml"), "en_to_ka"); len(got) != 0 {
			t.Errorf("LoadTerminology() = %v", got)
		}
	})

	t.Run("未配置路径", func(t *testing.T) {
		if got := LoadTerminology("", ""); got == nil || len(got) != 0 {
			t.Errorf("LoadTerminology() = %v", got)
		}
	})

	t.Run("损坏的文件返回空表", func(t *testing.T) {
		path := filepath.Join(dir, "broken.json")
		os.WriteFile(path, []byte(`{"FreeRTOS": `), 0644)
		if got := LoadTerminology(path, ""); len(got) != 0 {
			t.Errorf("LoadTerminology() = %v", got)
		}
	})

	t.Run("正常加载", func(t *testing.T) {
		path := filepath.Join(dir, "terminology.json")
		os.WriteFile(path, []byte(`{"en_to_ka": {"FreeRTOS": "ფრირტოსი"}}`), 0644)
		got := LoadTerminology(path, "en_to_ka")
		if len(got) != 1 || got["FreeRTOS"] != "ფრირტოსი" {
			t.Errorf("LoadTerminology() = %v", got)
		}
	})

	t.Run("文件过大", func(t *testing.T) {
		path := filepath.Join(dir, "huge.yaml")
		os.WriteFile(path, []byte(strings.Repeat("a", MaxTerminologyFileSize+1)), 0644)
		if got := LoadTerminology(path, ""); len(got) != 0 {
			t.Errorf("超大文件应被拒绝: %d 条", len(got))
		}
	})
}

func TestEnsureConfigExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	created, err := EnsureConfigExists(path)
	if err != nil || !created {
		t.Fatalf("应自动创建配置文件: created=%v err=%v", created, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("配置文件未创建: %v", err)
	}
	if string(data) != Template() {
		t.Error("新建的配置文件应为模板内容")
	}

	// 已存在时不覆盖
	os.WriteFile(path, []byte("site:\n  base_url: https://x/\n"), 0644)
	created, err = EnsureConfigExists(path)
	if err != nil || created {
		t.Errorf("已存在的配置不应被覆盖: created=%v err=%v", created, err)
	}
}

func TestTemplateIsValidYAML(t *testing.T) {
	var parsed map[string]interface{}
	if err := yaml.Unmarshal([]byte(Template()), &parsed); err != nil {
		t.Fatalf("模板不是合法YAML: %v", err)
	}
	for _, section := range []string{"site", "crawl", "detect", "translate", "logging"} {
		if _, ok := parsed[section]; !ok {
			t.Errorf("模板缺少 %s 段", section)
		}
	}
}

func TestValidateFileSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "huge.yaml")
	os.WriteFile(path, []byte(strings.Repeat("headers:\n  X-Test: value\n", 50000)), 0644)

	err := ValidateFileSize(path, MaxConfigFileSize)
	var ce *models.ConfigError
	if !errors.As(err, &ce) {
		t.Errorf("超大配置文件应返回ConfigError, 得到 %v", err)
	}

	small := filepath.Join(dir, "small.yaml")
	os.WriteFile(small, []byte("site: {}\n"), 0644)
	if err := ValidateFileSize(small, MaxConfigFileSize); err != nil {
		t.Errorf("正常文件不应报错: %v", err)
	}
}
