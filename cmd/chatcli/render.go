package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"

	"github.com/Tyrowin/pairchat/internal/client"
	"github.com/Tyrowin/pairchat/internal/model"
	"github.com/Tyrowin/pairchat/internal/reconcile"
)

var (
	mine     = color.New(color.FgCyan)
	theirs   = color.New(color.FgGreen)
	dim      = color.New(color.FgGray)
	errStyle = color.New(color.FgRed, color.OpBold)
)

func renderUsers(w io.Writer, users []client.UserStatus) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Name", "Email", "Online"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("\t")

	for _, u := range users {
		online := ""
		if u.Online {
			online = "yes"
		}
		table.Append([]string{u.ID.String(), u.Name, u.Email, online})
	}
	table.Render()
}

func formatMessage(v reconcile.View, me model.UserID) string {
	var b strings.Builder
	b.WriteString(dim.Sprintf("[%s]", v.CreatedAt.Local().Format("15:04:05")))
	b.WriteByte(' ')

	style, who := theirs, shortID(v.SenderID)
	if v.SenderID == me {
		style, who = mine, "me"
	}
	b.WriteString(style.Sprintf("%s:", who))
	b.WriteByte(' ')

	switch {
	case v.Deleted:
		b.WriteString(dim.Render(v.Text))
	default:
		b.WriteString(v.Text)
		if v.Attachment != "" {
			b.WriteString(dim.Sprintf(" (attachment %s)", v.Attachment))
		}
	}
	if v.ID == 0 {
		b.WriteString(dim.Render(" (sending)"))
	} else {
		b.WriteString(dim.Sprintf(" #%d", v.ID))
	}
	if v.New {
		b.WriteString(" *")
	}
	return b.String()
}

func shortID(id model.UserID) string {
	s := id.String()
	return fmt.Sprintf("%s…", s[:8])
}
