package commands

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/goblinsan/ado-report/pkg/config"
	"github.com/goblinsan/ado-report/pkg/credentials"
	"github.com/spf13/viper"
)

func emptyStore(t *testing.T) credentials.Store {
	t.Helper()
	return credentials.Store{Path: filepath.Join(t.TempDir(), "credentials.yaml")}
}

func TestValidateConfig_Valid(t *testing.T) {
	v := viper.New()
	v.Set(config.KeyOrganization, "acme")
	v.Set(config.KeyProject, "Soporte Clientes")
	v.Set(config.KeyToken, "pat")

	errs := validateConfig(v, emptyStore(t))
	if len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}
}

func TestValidateConfig_MissingRequired(t *testing.T) {
	errs := validateConfig(viper.New(), emptyStore(t))
	if len(errs) != 3 {
		t.Errorf("expected 3 errors for organization, project and token, got %d: %v", len(errs), errs)
	}
}

func TestValidateConfig_RememberedCredentials(t *testing.T) {
	store := emptyStore(t)
	if err := store.Save(credentials.Credentials{Token: "stored", Organization: "acme", Project: "Soporte"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	errs := validateConfig(viper.New(), store)
	if len(errs) != 0 {
		t.Errorf("expected remembered credentials to satisfy the configuration, got %v", errs)
	}
}

func TestValidateConfig_InvalidTimeout(t *testing.T) {
	v := viper.New()
	v.Set(config.KeyHTTPTimeout, "forever")

	errs := validateConfig(v, emptyStore(t))
	if len(errs) != 1 || !strings.Contains(errs[0], "http-timeout") {
		t.Errorf("expected a single timeout error, got %v", errs)
	}
}

func TestLoadConfig_FlagsWinOverStore(t *testing.T) {
	store := emptyStore(t)
	if err := store.Save(credentials.Credentials{Token: "stored", Organization: "stored-org", Project: "stored-project"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	v := viper.New()
	v.Set(config.KeyProject, "Other")
	cfg, remembered, err := loadConfig(v, store)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if !remembered || cfg.Token != "stored" || cfg.Organization != "stored-org" || cfg.Project != "Other" {
		t.Errorf("unexpected merge remembered=%v cfg=%+v", remembered, cfg)
	}

	v.Set(config.KeyToken, "explicit")
	cfg, remembered, err = loadConfig(v, store)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if remembered || cfg.Token != "explicit" || cfg.Organization != "" {
		t.Errorf("an explicit token must ignore the store, got remembered=%v cfg=%+v", remembered, cfg)
	}
}
