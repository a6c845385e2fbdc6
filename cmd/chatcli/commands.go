package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/Tyrowin/pairchat/internal/client"
	"github.com/Tyrowin/pairchat/internal/event"
	"github.com/Tyrowin/pairchat/internal/model"
)

func registerCmd(f *flags) *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "Create an account",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Required: true},
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "password", Required: true, Sources: cli.EnvVars("PAIRCHAT_PASSWORD")},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			u, err := f.API.Register(ctx, c.String("name"), c.String("email"), c.String("password"))
			if err != nil {
				return fmt.Errorf("register: %w", err)
			}
			_, _ = fmt.Fprintf(c.Root().Writer, "registered %s <%s> as %s\n", u.Name, u.Email, u.ID)
			return nil
		},
	}
}

func loginCmd(f *flags) *cli.Command {
	return &cli.Command{
		Name:        "login",
		Usage:       "Log in and print an access token",
		Description: "Prints shell exports for PAIRCHAT_TOKEN and PAIRCHAT_USER_ID.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Required: true, Sources: cli.EnvVars("PAIRCHAT_EMAIL")},
			&cli.StringFlag{Name: "password", Required: true, Sources: cli.EnvVars("PAIRCHAT_PASSWORD")},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			login, err := f.API.Login(ctx, c.String("email"), c.String("password"))
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			out := c.Root().Writer
			_, _ = fmt.Fprintf(out, "export PAIRCHAT_TOKEN=%s\n", login.Token)
			_, _ = fmt.Fprintf(out, "export PAIRCHAT_USER_ID=%s\n", login.User.ID)
			return nil
		},
	}
}

func usersCmd(f *flags) *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "List accounts and who is online",
		Action: func(ctx context.Context, c *cli.Command) error {
			users, err := f.API.Users(ctx)
			if err != nil {
				return fmt.Errorf("list users: %w", err)
			}
			renderUsers(c.Root().Writer, users)
			return nil
		},
	}
}

func historyCmd(f *flags) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Print the conversation with a user",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "with", Usage: "peer user id", Required: true},
			&cli.StringFlag{Name: "me", Usage: "your user id", Sources: cli.EnvVars("PAIRCHAT_USER_ID")},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			peer, err := parseUser("with", c.String("with"))
			if err != nil {
				return err
			}
			me, _ := uuid.Parse(c.String("me"))

			session := client.NewSession(f.API, nil, me, f.Log)
			if err := session.Load(ctx, peer); err != nil {
				return fmt.Errorf("history: %w", err)
			}
			out := c.Root().Writer
			for _, v := range session.Conversation(peer).Messages() {
				_, _ = fmt.Fprintln(out, formatMessage(v, me))
			}
			return nil
		},
	}
}

func sendCmd(f *flags) *cli.Command {
	return &cli.Command{
		Name:  "send",
		Usage: "Send a message, optionally with an attachment",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "to", Usage: "receiver user id", Required: true},
			&cli.StringFlag{Name: "message", Aliases: []string{"m"}},
			&cli.StringFlag{Name: "file", Usage: "path of a file to attach"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			to, err := parseUser("to", c.String("to"))
			if err != nil {
				return err
			}
			text, path := c.String("message"), c.String("file")

			var sent model.Message
			if path != "" {
				file, err := os.Open(path)
				if err != nil {
					return err
				}
				defer file.Close()
				sent, err = f.API.SendFile(ctx, to, text, filepath.Base(path), file)
				if err != nil {
					return fmt.Errorf("send: %w", err)
				}
			} else {
				if text == "" {
					return errors.New("send: --message or --file is required")
				}
				sent, err = f.API.Send(ctx, to, text)
				if err != nil {
					return fmt.Errorf("send: %w", err)
				}
			}
			_, _ = fmt.Fprintf(c.Root().Writer, "sent message %d\n", sent.ID)
			return nil
		},
	}
}

func deleteCmd(f *flags) *cli.Command {
	return &cli.Command{
		Name:  "delete",
		Usage: "Delete one of your messages",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "id", Usage: "message id", Required: true},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			id := c.Int64("id")
			if err := f.API.Delete(ctx, id); err != nil {
				return fmt.Errorf("delete: %w", err)
			}
			_, _ = fmt.Fprintf(c.Root().Writer, "deleted message %d\n", id)
			return nil
		},
	}
}

func watchCmd(f *flags) *cli.Command {
	return &cli.Command{
		Name:        "watch",
		Usage:       "Stay connected and print live events",
		Description: "Registers the connection as --me and prints messages, deletions and typing indicators until interrupted.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "me", Usage: "your user id", Required: true, Sources: cli.EnvVars("PAIRCHAT_USER_ID")},
			&cli.StringFlag{Name: "with", Usage: "load the history with this peer first"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			me, err := parseUser("me", c.String("me"))
			if err != nil {
				return err
			}
			conn, err := f.API.Dial(ctx)
			if err != nil {
				return err
			}
			if err := conn.Register(me); err != nil {
				_ = conn.Close()
				return fmt.Errorf("register connection: %w", err)
			}

			out := c.Root().Writer
			session := client.NewSession(f.API, conn, me, f.Log)
			if peerArg := c.String("with"); peerArg != "" {
				peer, err := parseUser("with", peerArg)
				if err != nil {
					_ = conn.Close()
					return err
				}
				if err := session.Load(ctx, peer); err != nil {
					f.Log.Warn("load history", zap.Error(err))
				}
				for _, v := range session.Conversation(peer).Messages() {
					_, _ = fmt.Fprintln(out, formatMessage(v, me))
				}
			}

			err = session.Run(ctx, func(ev client.Event, peer model.UserID, changed bool) {
				if line := formatEvent(session, ev, peer, changed, me); line != "" {
					_, _ = fmt.Fprintln(out, line)
				}
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func parseUser(flag, v string) (model.UserID, error) {
	id, err := uuid.Parse(v)
	if err != nil {
		return model.UserID{}, fmt.Errorf("--%s: %q is not a user id", flag, v)
	}
	return id, nil
}

// formatEvent renders a live event as one line. Events that changed nothing print nothing.
func formatEvent(s *client.Session, ev client.Event, peer model.UserID, changed bool, me model.UserID) string {
	switch ev.Type {
	case event.TypeRegistered:
		return dim.Sprintf("connected as %s", ev.Registered.UserID)
	case event.TypeError:
		return errStyle.Sprintf("error %s: %s", ev.Error.Code, ev.Error.Message)
	case event.TypeReceiveMessage:
		if !changed {
			return ""
		}
		for _, v := range s.Conversation(peer).Messages() {
			if v.ClientID == ev.Message.ClientID {
				return formatMessage(v, me)
			}
		}
	case event.TypeMessageDeleted:
		if changed {
			return dim.Sprintf("message %d was deleted", ev.Deleted.ID)
		}
	case event.TypeTyping, event.TypeStopTyping:
		if changed && ev.Typing.Typing {
			return dim.Sprintf("%s is typing...", shortID(peer))
		}
	}
	return ""
}
