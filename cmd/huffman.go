package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/HaoruiPeng/massive-mimo-slicing/sim/pilot"
)

var (
	huffmanProbs   []float64 // per-source contention probabilities
	huffmanPilots  int       // pilots per frame, for the retry pilot column
	huffmanStride  int       // retry group stride
	huffmanRetries int       // retries to show per source
)

func printHuffman(w io.Writer, tree *pilot.Tree, probs []float64, pilots, stride, retries int) {
	fmt.Fprintf(w, "=== Huffman pilot sequences (root probability %.4f) ===\n", tree.RootProb())
	for i, p := range probs {
		seq := tree.Sequence(i)
		fmt.Fprintf(w, "source %-3d p=%.4f depth=%d sequence=%v", i, p, tree.Depth(i), seq)
		if pilots > 0 {
			fmt.Fprint(w, " pilots=[")
			for k := 0; k < retries; k++ {
				idx, _ := tree.PilotIndex(i, k)
				if k > 0 {
					fmt.Fprint(w, " ")
				}
				fmt.Fprint(w, (stride*k+idx)%pilots)
			}
			fmt.Fprint(w, "]")
		}
		fmt.Fprintln(w)
	}
}

// huffmanCmd prints the pilot sequences assigned to a probability vector
var huffmanCmd = &cobra.Command{
	Use:   "huffman",
	Short: "Print the Huffman pilot sequences for a vector of contention probabilities",
	Run: func(cmd *cobra.Command, args []string) {
		tree, err := pilot.Build(huffmanProbs)
		if err != nil {
			logrus.Fatalf("Building tree: %v", err)
		}
		printHuffman(os.Stdout, tree, huffmanProbs, huffmanPilots, huffmanStride, huffmanRetries)
	},
}

func init() {
	huffmanCmd.Flags().Float64SliceVar(&huffmanProbs, "probs", []float64{0.5, 0.3, 0.2}, "Comma-separated per-source contention probabilities")
	huffmanCmd.Flags().IntVar(&huffmanPilots, "pilots", 0, "Pilots per frame; when set, print the retry pilot of each attempt")
	huffmanCmd.Flags().IntVar(&huffmanStride, "stride", 2, "Retry group stride")
	huffmanCmd.Flags().IntVar(&huffmanRetries, "retries", 4, "Retries to show per source")
	rootCmd.AddCommand(huffmanCmd)
}
