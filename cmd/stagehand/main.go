// Command stagehand monitors and controls a stagehand show-control host.
package main

import "github.com/stagehand-audio/stagehand/internal/cli"

func main() {
	cli.Execute()
}
