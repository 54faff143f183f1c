package service_test

import (
	"path/filepath"
	"testing"

	service "github.com/okian/hpde-analytics/internal/app"
	"github.com/okian/hpde-analytics/internal/config"
	"github.com/samber/do/v2"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRegisterDI(t *testing.T) {
	Convey("Given an injector holding a file-backed config", t, func() {
		cfg := config.New()
		cfg.TokenBackend = config.TokenBackendFile
		cfg.TokenFile = filepath.Join(t.TempDir(), "token.json")
		cfg.ConsumerKey, cfg.ConsumerSecret = "ck", "cs"

		injector := do.New()
		do.ProvideValue(injector, cfg)
		service.RegisterDI(injector)

		Convey("When the service is resolved", func() {
			svc, err := do.Invoke[*service.Service](injector)
			vault, vaultErr := do.Invoke[service.Vault](injector)

			Convey("Then the graph should be wired to the file store", func() {
				So(err, ShouldBeNil)
				So(svc, ShouldNotBeNil)
				So(svc.Credentials().ConsumerKey, ShouldEqual, "ck")
				So(vaultErr, ShouldBeNil)
				So(vault.Backend(), ShouldEqual, "file")
			})
		})
	})
}
