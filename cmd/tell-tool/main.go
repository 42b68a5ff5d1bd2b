// SPDX-FileCopyrightText: 2026 The clawtell-go Authors
//
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/clawtell/clawtell-go/pkg/api"
)

// printUsage of tell-tool and exit with an error code afterwards.
func printUsage() {
	_, _ = fmt.Fprintf(os.Stderr, "Usage of %s send|inbox|poll|ack|read|me|lookup|check|allowlist|renew|exchange:\n\n", os.Args[0])

	_, _ = fmt.Fprintf(os.Stderr, "%s send receiver subject -|filename\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Sends a message to receiver with the stdin (-) or the given file as body.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s inbox [limit]\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Fetches and prints inbox messages without acknowledging them.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s poll [timeout-seconds]\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Long-polls once, prints the received messages and acknowledges them.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s ack message-id...\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Acknowledges the given messages in one batch.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s read message-id\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Marks a single message as read.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s me\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Prints the own profile and its registration expiry status.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s lookup name\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Prints the profile registered under name.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s check name\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Reports whether name is still available.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s allowlist [add|remove name]\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Prints the allowlist or modifies it.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s renew [years]\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Renews the name registration, by default for one year.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s exchange directory\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Exchanges messages over the given directory. Incoming messages are written\n")
	_, _ = fmt.Fprintf(os.Stderr, "  as files; a file dropped into the directory is sent to the agent the file\n")
	_, _ = fmt.Fprintf(os.Stderr, "  is named after.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "The API key is read from CLAWTELL_API_KEY, the relay from CLAWTELL_BASE_URL.\n")

	os.Exit(1)
}

func printFatal(err error, msg string) {
	log.WithError(err).Fatal(msg)
}

// newClient from the environment; see printUsage.
func newClient() *api.Client {
	client, err := api.NewClient("", "")
	if err != nil {
		printFatal(err, "Creating client errored")
	}
	return client
}

func printMessage(m api.Message) {
	fmt.Printf("%s  %s -> %s\n", m.ID, m.From, m.To)
	if m.Subject != "" {
		fmt.Printf("  subject: %s\n", m.Subject)
	}
	if m.ThreadID != "" {
		fmt.Printf("  thread:  %s\n", m.ThreadID)
	}
	fmt.Printf("  %s\n\n", m.Body)
}

// sendMessage for the "send" CLI option.
func sendMessage(args []string) {
	if len(args) != 3 {
		printUsage()
	}

	var (
		receiver  = args[0]
		subject   = args[1]
		dataInput = args[2]

		err  error
		data []byte
	)

	if dataInput == "-" {
		data, err = ioutil.ReadAll(os.Stdin)
	} else {
		data, err = ioutil.ReadFile(dataInput)
	}
	if err != nil {
		printFatal(err, "Reading input errored")
	}

	resp, err := newClient().Send(context.Background(), receiver, string(data), subject)
	if err != nil {
		printFatal(err, "Sending message errored")
	}

	fmt.Printf("sent %s\n", resp.MessageID)
}

// showInbox for the "inbox" CLI option.
func showInbox(args []string) {
	opts := api.InboxOptions{}
	if len(args) == 1 {
		limit, err := strconv.Atoi(args[0])
		if err != nil {
			printUsage()
		}
		opts.Limit = limit
	} else if len(args) != 0 {
		printUsage()
	}

	resp, err := newClient().Inbox(context.Background(), opts)
	if err != nil {
		printFatal(err, "Fetching inbox errored")
	}

	for _, m := range resp.Messages {
		printMessage(m)
	}
}

// pollOnce for the "poll" CLI option.
func pollOnce(args []string) {
	timeout := api.PollTimeoutMax
	if len(args) == 1 {
		var err error
		if timeout, err = strconv.Atoi(args[0]); err != nil {
			printUsage()
		}
	} else if len(args) != 0 {
		printUsage()
	}

	client := newClient()

	resp, err := client.Poll(context.Background(), timeout, api.PollLimitMax)
	if err != nil {
		printFatal(err, "Polling errored")
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		printMessage(m)
		ids = append(ids, m.ID)
	}

	if _, err := client.Ack(context.Background(), ids); err != nil {
		printFatal(err, "Acknowledging messages errored")
	}
}

// ackMessages for the "ack" CLI option.
func ackMessages(args []string) {
	if len(args) == 0 {
		printUsage()
	}

	resp, err := newClient().Ack(context.Background(), args)
	if err != nil {
		printFatal(err, "Acknowledging messages errored")
	}

	fmt.Printf("acked %d\n", resp.Acked)
}

// markRead for the "read" CLI option.
func markRead(args []string) {
	if len(args) != 1 {
		printUsage()
	}

	if err := newClient().MarkRead(context.Background(), args[0]); err != nil {
		printFatal(err, "Marking message as read errored")
	}
}

func printProfile(profile *api.Profile) {
	fmt.Printf("name:      %s\n", profile.Name)
	if profile.FullName != "" {
		fmt.Printf("full name: %s\n", profile.FullName)
	}
	if !profile.ExpiresAt.IsZero() {
		fmt.Printf("expires:   %s\n", profile.ExpiresAt.Format("2006-01-02"))
	}
	if profile.Unread > 0 {
		fmt.Printf("unread:    %d\n", profile.Unread)
	}
}

// showMe for the "me" CLI option.
func showMe() {
	client := newClient()

	profile, err := client.Me(context.Background())
	if err != nil {
		printFatal(err, "Fetching profile errored")
	}

	printProfile(profile)

	if status, err := client.CheckExpiry(context.Background()); err == nil {
		fmt.Printf("status:    %s\n", status.Status)
	}
}

// lookupName for the "lookup" CLI option.
func lookupName(args []string) {
	if len(args) != 1 {
		printUsage()
	}

	profile, err := newClient().Lookup(context.Background(), args[0])
	if err != nil {
		printFatal(err, "Looking up name errored")
	}

	printProfile(profile)
}

// checkName for the "check" CLI option.
func checkName(args []string) {
	if len(args) != 1 {
		printUsage()
	}

	available, err := newClient().CheckAvailable(context.Background(), args[0])
	if err != nil {
		printFatal(err, "Checking name errored")
	}

	if available {
		fmt.Printf("%s is available\n", api.CanonicalName(args[0]))
	} else {
		fmt.Printf("%s is taken\n", api.CanonicalName(args[0]))
	}
}

// manageAllowlist for the "allowlist" CLI option.
func manageAllowlist(args []string) {
	client := newClient()

	switch {
	case len(args) == 0:
		names, err := client.Allowlist(context.Background())
		if err != nil {
			printFatal(err, "Fetching allowlist errored")
		}
		for _, name := range names {
			fmt.Println(name)
		}

	case len(args) == 2 && args[0] == "add":
		if err := client.AllowlistAdd(context.Background(), args[1]); err != nil {
			printFatal(err, "Adding to allowlist errored")
		}

	case len(args) == 2 && args[0] == "remove":
		if err := client.AllowlistRemove(context.Background(), args[1]); err != nil {
			printFatal(err, "Removing from allowlist errored")
		}

	default:
		printUsage()
	}
}

// renewName for the "renew" CLI option.
func renewName(args []string) {
	years := 1
	if len(args) == 1 {
		var err error
		if years, err = strconv.Atoi(args[0]); err != nil {
			printUsage()
		}
	} else if len(args) != 0 {
		printUsage()
	}

	resp, err := newClient().Renew(context.Background(), years)
	if err != nil {
		printFatal(err, "Renewing registration errored")
	}

	if resp.CheckoutURL != "" {
		fmt.Printf("complete the renewal at %s\n", resp.CheckoutURL)
	} else {
		fmt.Printf("renewed until %s\n", resp.ExpiresAt.Format("2006-01-02"))
	}
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
	}

	switch os.Args[1] {
	case "send":
		sendMessage(os.Args[2:])

	case "inbox":
		showInbox(os.Args[2:])

	case "poll":
		pollOnce(os.Args[2:])

	case "ack":
		ackMessages(os.Args[2:])

	case "read":
		markRead(os.Args[2:])

	case "me":
		showMe()

	case "lookup":
		lookupName(os.Args[2:])

	case "check":
		checkName(os.Args[2:])

	case "allowlist":
		manageAllowlist(os.Args[2:])

	case "renew":
		renewName(os.Args[2:])

	case "exchange":
		startExchange(os.Args[2:])

	default:
		printUsage()
	}
}
