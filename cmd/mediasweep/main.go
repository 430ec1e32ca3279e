// Command mediasweep transcodes media libraries to size-capped HEVC MP4,
// either on demand, on a schedule, or when Radarr and Sonarr import a file.
package main

import (
	"os"

	"github.com/backmassage/mediasweep/cmd/mediasweep/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
