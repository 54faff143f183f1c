package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/hpde-analytics/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.BaseURL, convey.ShouldEqual, config.DefaultBaseURL)
				convey.So(cfg.CallbackPort, convey.ShouldEqual, 8089)
				convey.So(cfg.MaxAttempts, convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When loading config with the MSR environment variables", func() {
			_ = os.Setenv("MSR_CONSUMER_KEY", "ck")
			_ = os.Setenv("MSR_CONSUMER_SECRET", "cs")
			_ = os.Setenv("MSR_BASE_URL", "http://127.0.0.1:9999")
			_ = os.Setenv("MSR_CALLBACK_PORT", "9090")
			_ = os.Setenv("MSR_TOKEN_BACKEND", "file")
			_ = os.Setenv("MSR_MAX_ATTEMPTS", "5")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.ConsumerKey, convey.ShouldEqual, "ck")
				convey.So(cfg.ConsumerSecret, convey.ShouldEqual, "cs")
				convey.So(cfg.BaseURL, convey.ShouldEqual, "http://127.0.0.1:9999")
				convey.So(cfg.CallbackPort, convey.ShouldEqual, 9090)
				convey.So(cfg.TokenBackend, convey.ShouldEqual, "file")
				convey.So(cfg.MaxAttempts, convey.ShouldEqual, 5)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			yamlContent := `
# local overrides
base_url: "https://sandbox.motorsportreg.com"
callback_port: 8100
organization_id: "ORG-1"
output_dir: "/tmp/exports"
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("MSR_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML and keep defaults elsewhere", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.BaseURL, convey.ShouldEqual, "https://sandbox.motorsportreg.com")
				convey.So(cfg.CallbackPort, convey.ShouldEqual, 8100)
				convey.So(cfg.OrganizationID, convey.ShouldEqual, "ORG-1")
				convey.So(cfg.OutputDir, convey.ShouldEqual, "/tmp/exports")
				convey.So(cfg.AuthTimeoutMS, convey.ShouldEqual, 300_000)
			})
		})

		convey.Convey("When both file and environment variables are set", func() {
			tmpFile := createTempConfigFile("callback_port: 8100\nlog_level: debug\n")
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("MSR_CONFIG", tmpFile)
			_ = os.Setenv("MSR_CALLBACK_PORT", "8200")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should win", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.CallbackPort, convey.ShouldEqual, 8200)
				convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
			})
		})

		convey.Convey("When the YAML file is invalid", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("MSR_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the YAML file does not exist", func() {
			_ = os.Setenv("MSR_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the callback port is not numeric", func() {
			_ = os.Setenv("MSR_CALLBACK_PORT", "not_a_number")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the base url is blanked", func() {
			_ = os.Setenv("MSR_BASE_URL", "")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "base_url")
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"MSR_CONFIG",
		"MSR_CONSUMER_KEY",
		"MSR_CONSUMER_SECRET",
		"MSR_BASE_URL",
		"MSR_CALLBACK_PORT",
		"MSR_TOKEN_BACKEND",
		"MSR_MAX_ATTEMPTS",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "hpde-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
