// Command portfolioctl runs maintenance tasks against the portfolio database
// and exposes the demo-URL detector and the project classifier standalone.
//
//	portfolioctl sync --user <id>
//	portfolioctl sync --all
//	portfolioctl detect --homepage https://x.vercel.app --readme README.md
//	portfolioctl classify --deployed-url https://x.vercel.app --description "wip"
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
