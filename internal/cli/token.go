package cli

import (
	"fmt"
	"time"

	"github.com/abrezinsky/slotboard/internal/auth"
	"github.com/abrezinsky/slotboard/internal/models"
)

// TokenCmd signs an identity token with the server's secret
type TokenCmd struct {
	UID    string        `arg:"" help:"User id (token subject)."`
	Name   string        `help:"Display name."`
	Email  string        `help:"Email address; admin rights follow ADMIN_EMAILS."`
	TTL    time.Duration `help:"Token lifetime." default:"24h"`
	Secret string        `help:"Signing secret." env:"JWT_SECRET" required:""`
}

func (cmd *TokenCmd) Run(c *Context) error {
	token, err := auth.New([]byte(cmd.Secret)).Issue(models.Identity{
		UID:   cmd.UID,
		Name:  cmd.Name,
		Email: cmd.Email,
	}, cmd.TTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.Out, token)
	return nil
}
