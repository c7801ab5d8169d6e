// The enroll CLI registers EmberTalk client keys with a key server and
// looks up registered keys.
package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/embertalk/keyserver/client"
	"github.com/embertalk/keyserver/cmd/flags"
	"github.com/embertalk/keyserver/cryptoutils"
	"github.com/embertalk/keyserver/discovery"
)

var keyFileFlag = &cli.StringFlag{
	Name:  "key",
	Value: "embertalk.key",
	Usage: "path to the client private key PEM file",
}

var nameFlag = &cli.StringFlag{
	Name:     "name",
	Required: true,
	Usage:    "name to register or look up",
}

func main() {
	app := &cli.App{
		Name:  "enroll",
		Usage: "Register EmberTalk client keys and look up registered names",
		Commands: []*cli.Command{
			{
				Name:  "keygen",
				Usage: "Generate a new client keypair",
				Flags: []cli.Flag{
					keyFileFlag,
				},
				Action: func(cCtx *cli.Context) error {
					keyPath := cCtx.String(keyFileFlag.Name)
					if _, err := os.Stat(keyPath); err == nil {
						return fmt.Errorf("refusing to overwrite existing key file %s", keyPath)
					}

					privPEM, pubkey, err := cryptoutils.GenerateClientKey()
					if err != nil {
						return err
					}

					if err := os.WriteFile(keyPath, privPEM, 0600); err != nil {
						return fmt.Errorf("could not write key file: %w", err)
					}

					fmt.Println(string(pubkey))
					return nil
				},
			},
			{
				Name:  "register",
				Usage: "Prove key possession and claim a name",
				Flags: []cli.Flag{
					keyFileFlag,
					nameFlag,
					flags.ServerAddrFlag,
					flags.DiscoverDomainFlag,
				},
				Action: func(cCtx *cli.Context) error {
					privPEM, err := os.ReadFile(cCtx.String(keyFileFlag.Name))
					if err != nil {
						return fmt.Errorf("could not read key file: %w", err)
					}

					c, err := resolveClient(cCtx)
					if err != nil {
						return err
					}

					name := cCtx.String(nameFlag.Name)
					if err := c.Enroll(name, privPEM); err != nil {
						return err
					}

					fmt.Printf("registered %q\n", name)
					return nil
				},
			},
			{
				Name:  "lookup",
				Usage: "Fetch the public key registered under a name",
				Flags: []cli.Flag{
					nameFlag,
					flags.ServerAddrFlag,
					flags.DiscoverDomainFlag,
				},
				Action: func(cCtx *cli.Context) error {
					c, err := resolveClient(cCtx)
					if err != nil {
						return err
					}

					pubkey, err := c.LookupKey(cCtx.String(nameFlag.Name))
					if err != nil {
						return err
					}

					fmt.Println(string(pubkey))
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// resolveClient builds a client from --server-addr, or from DNS SRV
// discovery when --discover is set.
func resolveClient(cCtx *cli.Context) (*client.Client, error) {
	domain := cCtx.String(flags.DiscoverDomainFlag.Name)
	if domain == "" {
		return client.New(cCtx.String(flags.ServerAddrFlag.Name)), nil
	}

	resolver := &discovery.Resolver{}
	endpoints, err := resolver.KeyServerEndpoints(domain)
	if err != nil {
		return nil, err
	}
	if len(endpoints) == 0 {
		return nil, errors.New("discovery returned no endpoints")
	}

	return client.New("http://" + endpoints[0]), nil
}
