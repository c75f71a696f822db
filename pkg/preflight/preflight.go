// Package preflight validates the environment before any task runs. Every
// failure is a startup validation error and aborts the run.
package preflight

import (
	"context"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/arthur-debert/archsetup/pkg/errors"
	"github.com/arthur-debert/archsetup/pkg/paths"
	"github.com/arthur-debert/archsetup/pkg/runner"
	"github.com/arthur-debert/archsetup/pkg/system"
)

// Check is one named validation.
type Check struct {
	Name string
	Run  func(ctx context.Context) error
}

// Run executes checks in order and returns the first failure.
func Run(ctx context.Context, logger zerolog.Logger, checks ...Check) error {
	for _, c := range checks {
		if err := c.Run(ctx); err != nil {
			logger.Error().Err(err).Str("check", c.Name).Msg("Preflight check failed")
			return err
		}
		logger.Debug().Str("check", c.Name).Msg("Preflight check passed")
	}
	return nil
}

// Privilege requires an effective uid of 0.
func Privilege(geteuid func() int) Check {
	return Check{Name: "privilege", Run: func(context.Context) error {
		if geteuid() != 0 {
			return errors.New(errors.ErrPrivilege, "archsetup must be run as root (use sudo)")
		}
		return nil
	}}
}

// TargetUser requires a non-root target user, which means running
// through sudo from a normal account.
func TargetUser(u paths.User) Check {
	return Check{Name: "user", Run: func(context.Context) error {
		if u.UID == 0 || u.Name == "" {
			return errors.New(errors.ErrUserUnknown, "cannot determine the target user; run through sudo from your own account").
				WithDetail("user", u.Name)
		}
		return nil
	}}
}

// Platform requires an Arch based system according to os-release.
func Platform(osRelease string) Check {
	return Check{Name: "platform", Run: func(context.Context) error {
		values, err := godotenv.Read(osRelease)
		if err != nil {
			return errors.Wrapf(err, errors.ErrUnsupportedPlatform, "cannot read %s", osRelease)
		}
		if isArch(values["ID"], values["ID_LIKE"]) {
			return nil
		}
		return errors.Newf(errors.ErrUnsupportedPlatform, "unsupported distribution %q", values["ID"]).
			WithDetail("id", values["ID"]).
			WithDetail("id_like", values["ID_LIKE"])
	}}
}

func isArch(id, idLike string) bool {
	if id == "arch" {
		return true
	}
	for _, like := range strings.Fields(idLike) {
		if like == "arch" {
			return true
		}
	}
	return false
}

// Network requires host to answer a ping.
func Network(r runner.Runner, host string) Check {
	return Check{Name: "network", Run: func(ctx context.Context) error {
		cmd := system.Ping(host)
		res := r.Run(ctx, cmd)
		if !res.Succeeded {
			return errors.Newf(errors.ErrNoNetwork, "%s is not reachable", host).
				WithDetails(map[string]interface{}{
					"host":      host,
					"command":   cmd.Line(),
					"exit_code": res.ExitCode,
				})
		}
		return nil
	}}
}

// Interactive requires a terminal to prompt on.
func Interactive(isTerminal bool) Check {
	return Check{Name: "interactive", Run: func(context.Context) error {
		if !isTerminal {
			return errors.New(errors.ErrNotInteractive, "no terminal to prompt on; pass --config with a selection file")
		}
		return nil
	}}
}
