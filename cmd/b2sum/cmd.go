package main

import (
	"encoding/hex"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	blake2b "github.com/Giulio2002/faster_blake2b"
)

type options struct {
	bits     int
	key      string
	salt     string
	personal string
	check    bool
	tag      bool
	jobs     int
	verbose  bool
}

func (o *options) addFlags(fs *pflag.FlagSet) {
	fs.IntVarP(&o.bits, "length", "l", 8*blake2b.Size, "digest length in bits; a multiple of 8, at most 512")
	fs.StringVar(&o.key, "key", "", "hex-encoded key, at most 64 bytes")
	fs.StringVar(&o.salt, "salt", "", "salt, at most 16 bytes")
	fs.StringVar(&o.personal, "personal", "", "personalization string, at most 16 bytes")
	fs.BoolVarP(&o.check, "check", "c", false, "read checksums from the FILEs and check them")
	fs.BoolVar(&o.tag, "tag", false, "create a BSD-style checksum")
	fs.IntVarP(&o.jobs, "jobs", "j", 4, "number of files hashed in parallel")
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "log per-file progress")
}

// config turns the flags into a digest length, parameter block and key.
func (o *options) config() (*blake2b.Params, []byte, error) {
	if o.bits <= 0 || o.bits > 8*blake2b.Size || o.bits%8 != 0 {
		return nil, nil, errors.Wrapf(blake2b.ErrInvalidLength, "invalid length %d", o.bits)
	}
	if o.jobs < 1 {
		return nil, nil, errors.Errorf("invalid number of jobs %d", o.jobs)
	}
	key, err := hex.DecodeString(o.key)
	if err != nil {
		return nil, nil, errors.Wrap(err, "decode key")
	}
	if len(key) > blake2b.KeySize {
		return nil, nil, errors.Wrapf(blake2b.ErrInvalidLength, "key is %d bytes", len(key))
	}

	p := blake2b.DefaultParams(o.bits/8, len(key))
	if err := p.SetSalt([]byte(o.salt)); err != nil {
		return nil, nil, err
	}
	if err := p.SetPersonal([]byte(o.personal)); err != nil {
		return nil, nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	return &p, key, nil
}

func newLogger(cmd *cobra.Command, verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(cmd.ErrOrStderr())
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

func newRootCommand() *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:   "b2sum [flags] [FILE...]",
		Short: "Print or check BLAKE2b checksums",
		Long: `
Print or check BLAKE2b checksums. With no FILE, or when FILE is -, read
standard input. The output is in the same format as the coreutils b2sum
tool.
`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(cmd, o.verbose)
			p, key, err := o.config()
			if err != nil {
				log.WithError(err).Error("bad flags")
				return err
			}
			if len(args) == 0 {
				args = []string{"-"}
			}
			h := &hasher{
				params: p,
				key:    key,
				jobs:   o.jobs,
				log:    log,
				stdin:  cmd.InOrStdin(),
			}
			if o.check {
				err = h.checkAll(cmd.Context(), args, cmd.OutOrStdout())
			} else {
				err = h.printAll(cmd.Context(), args, cmd.OutOrStdout(), o.tag)
			}
			if err != nil {
				log.WithError(err).Error("b2sum failed")
			}
			return err
		},
	}
	o.addFlags(cmd.Flags())
	return cmd
}

// algorithmName is the BSD-style tag coreutils prints for a digest length.
func algorithmName(size int) string {
	if size == blake2b.Size {
		return "BLAKE2b"
	}
	return fmt.Sprintf("BLAKE2b-%d", 8*size)
}
