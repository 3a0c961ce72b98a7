// Command webhookdb replicates a GitHub organization's object graph into
// a local relational mirror, kept fresh by a webhook intake and periodic
// full scans. See cmd/root.go for the subcommand tree.
package main

import "github.com/webhookdb/webhookdb/cmd"

func main() {
	cmd.Execute()
}
