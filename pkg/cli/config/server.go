package config

import (
	"github.com/urfave/cli/v3"

	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/domain/types"
)

// Server holds server configuration
type Server struct {
	Addr    string
	Metrics bool
}

// Flags returns CLI flags for server configuration
func (c *Server) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Server address",
			Value:       "localhost:8080",
			Destination: &c.Addr,
			Sources:     cli.EnvVars(types.EnvPrefix + "ADDR"),
		},
		&cli.BoolFlag{
			Name:        "metrics",
			Usage:       "Expose Prometheus metrics at /metrics",
			Value:       true,
			Destination: &c.Metrics,
			Sources:     cli.EnvVars(types.EnvPrefix + "METRICS"),
		},
	}
}
