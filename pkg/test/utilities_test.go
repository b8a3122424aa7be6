package test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"idp-node/pkg/utilities"
)

type MockConfigJson struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Debug   bool   `json:"debug"`
}

type MockConfig struct {
	Name    string
	Version string
	Debug   bool
}

func (mcj MockConfigJson) ConvertToDomain() MockConfig {
	return MockConfig{
		Name:    mcj.Name,
		Version: mcj.Version,
		Debug:   mcj.Debug,
	}
}

type MockItemJson struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type MockItem struct {
	ID   int
	Name string
}

func (mij MockItemJson) ConvertToDomain() MockItem {
	return MockItem{
		ID:   mij.ID,
		Name: mij.Name,
	}
}

type MockSerializableStruct struct {
	Data    string `json:"data"`
	Number  int    `json:"number"`
	Success bool   `json:"success"`
}

func (mss MockSerializableStruct) Serialize() ([]byte, error) {
	return utilities.Serialize[MockSerializableStruct](mss)
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}
	return path
}

func TestReadConfig(t *testing.T) {
	configData, err := json.Marshal(MockConfigJson{Name: "test-app", Version: "1.0.0", Debug: true})
	if err != nil {
		t.Fatalf("Failed to marshal test config: %v", err)
	}

	result, err := utilities.ReadConfig[MockConfigJson, MockConfig](writeTempFile(t, string(configData)))
	if err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}

	expected := MockConfig{Name: "test-app", Version: "1.0.0", Debug: true}
	if result != expected {
		t.Errorf("Expected %+v, got %+v", expected, result)
	}
}

func TestReadConfigFileNotFound(t *testing.T) {
	_, err := utilities.ReadConfig[MockConfigJson, MockConfig]("nonexistent_file.json")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}

func TestReadConfigInvalidJSON(t *testing.T) {
	_, err := utilities.ReadConfig[MockConfigJson, MockConfig](writeTempFile(t, "{ invalid json"))
	if err == nil {
		t.Error("Expected error when reading invalid JSON, got nil")
	}
}

func TestConvertJsonArrayToDomain(t *testing.T) {
	jsonArray := []MockItemJson{
		{ID: 1, Name: "Item 1"},
		{ID: 2, Name: "Item 2"},
	}

	result := utilities.ConvertJsonArrayToDomain[MockItemJson, MockItem](jsonArray)

	expected := []MockItem{{ID: 1, Name: "Item 1"}, {ID: 2, Name: "Item 2"}}
	if !reflect.DeepEqual(result, expected) {
		t.Errorf("Expected %v, got %v", expected, result)
	}
}

func TestConvertJsonArrayToDomainEmpty(t *testing.T) {
	result := utilities.ConvertJsonArrayToDomain[MockItemJson, MockItem](nil)
	if len(result) != 0 {
		t.Errorf("Expected empty result, got %v", result)
	}
}

func TestMap(t *testing.T) {
	result := utilities.Map([]int{1, 2, 3}, func(i int) string { return string(rune('a' + i - 1)) })
	if !reflect.DeepEqual(result, []string{"a", "b", "c"}) {
		t.Errorf("Unexpected mapping result: %v", result)
	}
}

func TestSerialize(t *testing.T) {
	data, err := MockSerializableStruct{Data: "hello", Number: 7, Success: true}.Serialize()
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	if string(data) != `{"data":"hello","number":7,"success":true}` {
		t.Errorf("Unexpected serialized form: %s", data)
	}

	if _, err := utilities.Serialize[any](make(chan int)); err == nil {
		t.Error("Expected error when serializing a channel")
	}
}

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("IDP_TEST_VALUE", "  from-env ")
	if got := utilities.EnvOrDefault("IDP_TEST_VALUE", "fallback"); got != "from-env" {
		t.Errorf("Expected trimmed env value, got %q", got)
	}

	t.Setenv("IDP_TEST_VALUE", "   ")
	if got := utilities.EnvOrDefault("IDP_TEST_VALUE", "fallback"); got != "fallback" {
		t.Errorf("Expected fallback for blank env value, got %q", got)
	}
}

func TestResolveLanHost(t *testing.T) {
	t.Setenv(utilities.LanHostEnvKey, "")
	if got := utilities.ResolveLanHost("127.0.0.1"); got != "127.0.0.1" {
		t.Errorf("Expected configured host, got %q", got)
	}

	t.Setenv(utilities.LanHostEnvKey, "192.168.1.20")
	if got := utilities.ResolveLanHost("127.0.0.1"); got != "192.168.1.20" {
		t.Errorf("Expected LAN_HOST_IP to win, got %q", got)
	}
}
