package disc

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"github.com/marmos91/umsd/cmd/umsctl/cmdutil"
	"github.com/marmos91/umsd/internal/adapter/usb"
	"github.com/marmos91/umsd/internal/bytesize"
	"github.com/marmos91/umsd/pkg/client"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/blake2b"
)

// HashResult is the digest of a disc image.
type HashResult struct {
	ID     string `json:"id" yaml:"id"`
	Bytes  uint64 `json:"bytes" yaml:"bytes"`
	Digest string `json:"blake2b_256" yaml:"blake2b_256"`
}

func (r HashResult) Headers() []string { return []string{"Disc", "Bytes", "BLAKE2b-256"} }

func (r HashResult) Rows() [][]string {
	return [][]string{{r.ID, strconv.FormatUint(r.Bytes, 10), r.Digest}}
}

var hashLength string

var hashCmd = &cobra.Command{
	Use:   "hash <id>",
	Short: "Compute the BLAKE2b-256 digest of a disc",
	Long: `Stream a disc through the service and print its BLAKE2b-256 digest.
Without --length the whole disc is hashed, stopping at its last block.`,
	Args: cobra.ExactArgs(1),
	RunE: runHash,
}

func init() {
	hashCmd.Flags().StringVar(&hashLength, "length", "", "Hash only the first N bytes")
}

func runHash(cmd *cobra.Command, args []string) error {
	limit := discSize
	explicit := hashLength != ""
	if explicit {
		n, err := bytesize.Parse(hashLength)
		if err != nil {
			return fmt.Errorf("invalid --length: %w", err)
		}
		limit = uint64(n)
	}

	ctx, cancel := cmdutil.Context(cmd.Context())
	defer cancel()

	s, err := openDisc(ctx, args[0])
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	h, err := blake2b.New256(nil)
	if err != nil {
		return err
	}

	buf := make([]byte, chunkSize)
	var pos uint64
	for pos < limit {
		n := int(min(uint64(chunkSize), limit-pos))
		word, err := wordOffset(pos)
		if err != nil {
			return err
		}
		if err := s.Handle.ReadDisc(ctx, word, buf[:n]); err != nil {
			if !explicit && client.IsStatus(err, usb.StatusDiscReadFailure) {
				break
			}
			return fmt.Errorf("failed to read disc at %d: %w", pos, err)
		}
		_, _ = h.Write(buf[:n])
		pos += uint64(n)
	}

	res := HashResult{ID: args[0], Bytes: pos, Digest: hex.EncodeToString(h.Sum(nil))}
	return cmdutil.PrintOutput(os.Stdout, res, res)
}
