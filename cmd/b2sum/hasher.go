package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	blake2b "github.com/Giulio2002/faster_blake2b"
)

// hasher hashes files with one blake2b.State per file, up to jobs at a time.
type hasher struct {
	params *blake2b.Params
	key    []byte
	jobs   int
	log    *logrus.Logger
	stdin  io.Reader
}

type result struct {
	sum []byte
	err error
}

func (h *hasher) open(name string) (io.ReadCloser, error) {
	if name == "-" {
		return io.NopCloser(h.stdin), nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", name)
	}
	return f, nil
}

// hashFile returns the digest of the named file using p.
func (h *hasher) hashFile(name string, p *blake2b.Params) ([]byte, error) {
	start := time.Now()
	r, err := h.open(name)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	s, err := blake2b.InitParam(p, h.key)
	if err != nil {
		return nil, err
	}
	n, err := io.Copy(s, r)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", name)
	}
	sum, err := s.Final(int(p.DigestLength))
	if err != nil {
		return nil, err
	}
	h.log.WithFields(logrus.Fields{
		"file":     name,
		"bytes":    n,
		"duration": time.Since(start),
	}).Debug("hashed")
	return sum, nil
}

// hashAll hashes every job and returns results in job order. Files are
// hashed concurrently; standard input is shared, so "-" jobs run one after
// another first and every one after the first sees EOF, as in coreutils.
// A failing file does not stop the others.
func (h *hasher) hashAll(ctx context.Context, names []string, params []*blake2b.Params) ([]result, error) {
	results := make([]result, len(names))
	for i, name := range names {
		if name != "-" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sum, err := h.hashFile(name, params[i])
		results[i] = result{sum: sum, err: err}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(h.jobs)
	for i, name := range names {
		if name == "-" {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sum, err := h.hashFile(name, params[i])
			results[i] = result{sum: sum, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (h *hasher) printAll(ctx context.Context, names []string, w io.Writer, tag bool) error {
	params := make([]*blake2b.Params, len(names))
	for i := range params {
		params[i] = h.params
	}
	results, err := h.hashAll(ctx, names, params)
	if err != nil {
		return err
	}

	failed := 0
	for i, res := range results {
		if res.err != nil {
			h.log.WithField("file", names[i]).WithError(res.err).Error("cannot hash")
			failed++
			continue
		}
		if tag {
			fmt.Fprintf(w, "%s (%s) = %x\n", algorithmName(len(res.sum)), names[i], res.sum)
		} else {
			fmt.Fprintf(w, "%x  %s\n", res.sum, names[i])
		}
	}
	if failed > 0 {
		return errors.Errorf("%d of %d files could not be hashed", failed, len(names))
	}
	return nil
}

type checkLine struct {
	name string
	want []byte
}

var bsdLine = regexp.MustCompile(`^BLAKE2b(?:-(\d+))? \((.+)\) = ([0-9a-fA-F]+)$`)

// parseCheckLine accepts "HASH  NAME", "HASH *NAME" and the BSD tag form.
func parseCheckLine(line string) (checkLine, error) {
	var name, digest string
	tagBits := -1
	if m := bsdLine.FindStringSubmatch(line); m != nil {
		name, digest = m[2], m[3]
		tagBits = 8 * blake2b.Size
		if m[1] != "" {
			bits, err := strconv.Atoi(m[1])
			if err != nil {
				return checkLine{}, errors.Wrapf(err, "parse length in %q", line)
			}
			tagBits = bits
		}
	} else {
		i := strings.IndexByte(line, ' ')
		if i <= 0 || i+2 >= len(line) || (line[i+1] != ' ' && line[i+1] != '*') {
			return checkLine{}, errors.Errorf("malformed checksum line %q", line)
		}
		name, digest = line[i+2:], line[:i]
	}
	want, err := hex.DecodeString(digest)
	if err != nil {
		return checkLine{}, errors.Wrapf(err, "decode checksum for %s", name)
	}
	if len(want) == 0 || len(want) > blake2b.Size {
		return checkLine{}, errors.Wrapf(blake2b.ErrInvalidLength, "checksum for %s is %d bytes", name, len(want))
	}
	if tagBits >= 0 && tagBits != 8*len(want) {
		return checkLine{}, errors.Wrapf(blake2b.ErrInvalidLength, "checksum for %s is %d bits, tag says %d", name, 8*len(want), tagBits)
	}
	return checkLine{name: name, want: want}, nil
}

func (h *hasher) readCheckFile(name string) ([]checkLine, error) {
	r, err := h.open(name)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var lines []checkLine
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		text := strings.TrimRight(sc.Text(), "\r")
		if text == "" {
			continue
		}
		cl, err := parseCheckLine(text)
		if err != nil {
			h.log.WithFields(logrus.Fields{"file": name, "line": n}).WithError(err).Warn("skipping line")
			continue
		}
		lines = append(lines, cl)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "read %s", name)
	}
	return lines, nil
}

func (h *hasher) checkAll(ctx context.Context, checkFiles []string, w io.Writer) error {
	var lines []checkLine
	for _, name := range checkFiles {
		cl, err := h.readCheckFile(name)
		if err != nil {
			return err
		}
		lines = append(lines, cl...)
	}

	names := make([]string, len(lines))
	params := make([]*blake2b.Params, len(lines))
	for i, cl := range lines {
		names[i] = cl.name
		p := *h.params
		p.DigestLength = uint8(len(cl.want))
		params[i] = &p
	}
	results, err := h.hashAll(ctx, names, params)
	if err != nil {
		return err
	}

	mismatched, unreadable := 0, 0
	for i, res := range results {
		switch {
		case res.err != nil:
			h.log.WithField("file", names[i]).WithError(res.err).Error("cannot hash")
			fmt.Fprintf(w, "%s: FAILED open or read\n", names[i])
			unreadable++
		case string(res.sum) != string(lines[i].want):
			fmt.Fprintf(w, "%s: FAILED\n", names[i])
			mismatched++
		default:
			fmt.Fprintf(w, "%s: OK\n", names[i])
		}
	}
	if mismatched > 0 || unreadable > 0 {
		return errors.Errorf("%d computed checksums did not match, %d files could not be read", mismatched, unreadable)
	}
	return nil
}
