// Command modkit is the module tooling CLI with a small chat module
// linked in, usable as-is for trying the commands out. Real modules
// build their own binary the same way: register tables and reducers
// into module.Default, then hand the registry to cli.NewRootCommand.
package main

import (
	"fmt"
	"os"

	"github.com/tesseradb/modkit/auth"
	"github.com/tesseradb/modkit/internal/cli"
	"github.com/tesseradb/modkit/module"
	"github.com/tesseradb/modkit/sats"
)

type user struct {
	Identity auth.Identity `bsatn:"identity"`
	Name     string        `bsatn:"name"`
	Online   bool          `bsatn:"online"`
}

type message struct {
	Sender auth.Identity  `bsatn:"sender"`
	Sent   sats.Timestamp `bsatn:"sent"`
	Text   string         `bsatn:"text"`
}

func registerChat(r *module.Registry) {
	module.MustRegisterTable[user](r, "user", module.Public(), module.PrimaryKey("identity"))
	module.MustRegisterTable[message](r, "message", module.Public())

	r.MustRegisterReducer("set_name", setName, module.WithParams("name"))
	r.MustRegisterReducer("send_message", sendMessage, module.WithParams("text"))
	r.MustRegisterReducer("client_connected", clientConnected)
	r.MustRegisterReducer("client_disconnected", clientDisconnected)
}

func setName(ctx *module.ReducerContext, name string) error {
	if name == "" {
		return fmt.Errorf("names must not be empty")
	}
	users, err := ctx.Db().Table("user")
	if err != nil {
		return err
	}
	var u user
	found, err := users.FindByKey("identity", ctx.Sender(), &u)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("cannot set name for unknown user")
	}
	u.Name = name
	return users.Update(&u)
}

func sendMessage(ctx *module.ReducerContext, text string) error {
	if text == "" {
		return fmt.Errorf("messages must not be empty")
	}
	messages, err := ctx.Db().Table("message")
	if err != nil {
		return err
	}
	ctx.Log.WithField("text_len", len(text)).Debug("message sent")
	return messages.Insert(&message{
		Sender: ctx.Sender(),
		Sent:   ctx.Timestamp(),
		Text:   text,
	})
}

func clientConnected(ctx *module.ReducerContext) error {
	users, err := ctx.Db().Table("user")
	if err != nil {
		return err
	}
	var u user
	found, err := users.FindByKey("identity", ctx.Sender(), &u)
	if err != nil {
		return err
	}
	if found {
		u.Online = true
		return users.Update(&u)
	}
	return users.Insert(&user{Identity: ctx.Sender(), Online: true})
}

func clientDisconnected(ctx *module.ReducerContext) error {
	users, err := ctx.Db().Table("user")
	if err != nil {
		return err
	}
	var u user
	found, err := users.FindByKey("identity", ctx.Sender(), &u)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	u.Online = false
	return users.Update(&u)
}

func main() {
	registerChat(module.Default())
	cmd := cli.NewRootCommand(module.Default())
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
