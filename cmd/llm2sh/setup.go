package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/randombk/llm2sh/internal/config"
	"github.com/randombk/llm2sh/internal/models"
	"github.com/randombk/llm2sh/internal/ui"
)

// runSetup walks the user through choosing a default model and providing
// its credentials, then saves the configuration.
func runSetup(cfg *config.Config, catalog *models.Catalog, configPath string) error {
	if !ui.IsInteractive() {
		return errors.New("--setup needs an interactive terminal")
	}

	ui.ShowSection("llm2sh Configuration")

	statuses := catalog.List(cfg)
	options := make([]string, len(statuses))
	defaultOption := ""
	for i, s := range statuses {
		options[i] = s.Name
		if s.Name == cfg.DefaultModel {
			defaultOption = s.Name
		}
	}

	selected, err := ui.ShowMenu("Default model:", options, defaultOption)
	if err != nil {
		return err
	}
	modelName := options[selected]

	providerName, _, _ := strings.Cut(modelName, "/")
	p, ok := catalog.Lookup(providerName)
	if !ok {
		return fmt.Errorf("unknown provider %q", providerName)
	}

	if p.Name == models.LocalProvider {
		if err := configureLocal(cfg); err != nil {
			return err
		}
		modelName = models.LocalProvider
	} else if err := configureKey(cfg, p); err != nil {
		return err
	}

	temperature, err := ui.PromptTemperature(cfg.Temperature)
	if err != nil {
		return err
	}
	cfg.Temperature = temperature
	cfg.DefaultModel = modelName

	if _, err := catalog.Resolve(cfg.DefaultModel, cfg); err != nil {
		ui.ShowWarning(err.Error())
	}

	if err := config.Save(cfg, configPath); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	ui.ShowSuccess(fmt.Sprintf("Configuration saved to %s", configPath))
	ui.ShowInfo("\nYou're all set! Try running: llm2sh \"list all files\"")
	return nil
}

func configureLocal(cfg *config.Config) error {
	uri, err := ui.PromptInput("Local server URI (OpenAI-compatible):", cfg.LocalURI)
	if err != nil {
		return err
	}
	model, err := ui.PromptInput("Model name to request:", cfg.LocalModel)
	if err != nil {
		return err
	}
	key, err := ui.PromptSecret("API key (optional):", cfg.LocalAPIKey)
	if err != nil {
		return err
	}

	cfg.LocalURI = uri
	cfg.LocalModel = model
	cfg.LocalAPIKey = key
	return nil
}

func configureKey(cfg *config.Config, p models.Provider) error {
	if env, ok := config.CredentialEnv(p.Credential); ok && cfg.Credential(p.Credential) != "" {
		ui.ShowInfo(fmt.Sprintf("A %s key is already available (config or $%s).", p.Display, env))
		replace, err := ui.PromptYesNo("Store a different key in the config file?", false)
		if err != nil || !replace {
			return err
		}
	}

	key, err := ui.PromptSecret(fmt.Sprintf("%s API key:", p.Display), "")
	if err != nil {
		return err
	}
	if key == "" {
		return nil
	}
	return cfg.SetCredential(p.Credential, key)
}
