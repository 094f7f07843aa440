package config

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/viper"
)

func TestNew(t *testing.T) {
	Convey("Given an empty environment", t, func() {
		t.Setenv("SENTRY_HOST", "")
		t.Setenv("SENTRY_AUTH_TOKEN", "")

		cfg := New(viper.New())

		Convey("It should fall back to the defaults", func() {
			So(cfg.Sentry.Host, ShouldEqual, DefaultSentryHost)
			So(cfg.Sentry.RequestTimeout, ShouldEqual, 30*time.Second)
			So(cfg.Server.Addr, ShouldEqual, ":8788")
			So(cfg.Log.Level, ShouldEqual, "info")
			So(cfg.IsProduction(), ShouldBeFalse)
		})

		Convey("Stdio validation should require a token", func() {
			err := cfg.ValidateStdio()
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "SENTRY_AUTH_TOKEN")
		})

		Convey("Serve validation should require the OAuth application", func() {
			err := cfg.ValidateServe()
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "SENTRY_CLIENT_ID")
		})
	})

	Convey("Given a populated environment", t, func() {
		t.Setenv("SENTRY_HOST", "sentry.example.com")
		t.Setenv("SENTRY_AUTH_TOKEN", "sntrys_token")
		t.Setenv("SENTRY_ORG", "my-org")
		t.Setenv("SENTRY_CLIENT_ID", "client")
		t.Setenv("SENTRY_CLIENT_SECRET", "secret")
		t.Setenv("SENTRY_REQUEST_TIMEOUT", "5s")
		t.Setenv("MCP_BASE_URL", "https://mcp.example.com/")
		t.Setenv("ENVIRONMENT", "production")

		cfg := New(viper.New())

		Convey("It should read every value", func() {
			So(cfg.Sentry.Host, ShouldEqual, "sentry.example.com")
			So(cfg.Sentry.AuthToken, ShouldEqual, "sntrys_token")
			So(cfg.Sentry.Organization, ShouldEqual, "my-org")
			So(cfg.Sentry.RequestTimeout, ShouldEqual, 5*time.Second)
			So(cfg.Server.BaseURL, ShouldEqual, "https://mcp.example.com")
			So(cfg.IsProduction(), ShouldBeTrue)
		})

		Convey("Both validations should pass", func() {
			So(cfg.ValidateStdio(), ShouldBeNil)
			So(cfg.ValidateServe(), ShouldBeNil)
		})
	})
}
