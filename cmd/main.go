package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/wordseek/wordseek"
	"github.com/wordseek/wordseek/options"
	"github.com/wordseek/wordseek/util"
	"github.com/wordseek/wordseek/vocab"
)

var vocabPath string
var embeddingsPath string
var inputPath string
var outputPath string
var minWordLength int
var maxWordLength int
var useHamming bool
var batchSize int

type input struct {
	Sequence string `json:"sequence"`
}

type output struct {
	Sequence string  `json:"sequence"`
	Start    int     `json:"start"`
	End      int     `json:"end"`
	Word     string  `json:"word"`
	Score    float32 `json:"score"`
	Matched  bool    `json:"matched"`
}

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "Find vocabulary words inside unsegmented sequences",
	Description: `Run expects a path to a file with input in .jsonl format. Each json line in the file must be of the format {"sequence": "..."} to be scored.
				`,
	ArgsUsage: `
				--vocab: path to a newline-delimited vocabulary word list.
				--embeddings: path to a JSON file mapping each character unit to its embedding vector.
				--input: path to a .jsonl file or a folder with .jsonl files to process. If omitted, the input will be read from stdin.
				--output: path to a folder where to write the output. If omitted, the output will be sent to stdout.
				`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:        "vocab",
			Usage:       "Path to the vocabulary word list",
			Aliases:     []string{"v"},
			Destination: &vocabPath,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "embeddings",
			Usage:       "Path to the unit embeddings JSON file",
			Aliases:     []string{"e"},
			Destination: &embeddingsPath,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "input",
			Usage:       "Path to the input data",
			Aliases:     []string{"i"},
			Destination: &inputPath,
		},
		&cli.StringFlag{
			Name:        "output",
			Usage:       "Path to output",
			Aliases:     []string{"o"},
			Destination: &outputPath,
		},
		&cli.IntFlag{
			Name:        "minLength",
			Usage:       "Minimum extracted word length",
			Destination: &minWordLength,
			Value:       4,
		},
		&cli.IntFlag{
			Name:        "maxLength",
			Usage:       "Maximum extracted word length",
			Destination: &maxWordLength,
			Value:       10,
		},
		&cli.BoolFlag{
			Name:        "hamming",
			Usage:       "Use the feature-group Hamming distance instead of cosine",
			Destination: &useHamming,
		},
		&cli.IntFlag{
			Name:        "batchSize",
			Usage:       "Number of sequences to score in a batch",
			Aliases:     []string{"b"},
			Destination: &batchSize,
			Value:       20,
		},
	},
	Action: func(ctx *cli.Context) (err error) {
		voc, err := vocab.Load(vocabPath, minWordLength, maxWordLength)
		if err != nil {
			return err
		}

		table, err := loadEmbeddingTable(embeddingsPath)
		if err != nil {
			return err
		}

		extractorOptions := []options.WithOption{
			options.WithWordLengths(minWordLength, maxWordLength),
		}
		if useHamming {
			extractorOptions = append(extractorOptions, options.WithHammingDistance())
		}
		extractor, err := wordseek.NewExtractor(voc, extractorOptions...)
		if err != nil {
			return err
		}

		inputChannel := make(chan []input, 1000)
		processedChannel := make(chan []byte, 1000)
		errorsChannel := make(chan error, 1000)
		var processedWg, writeWg sync.WaitGroup

		processedWg.Add(1)
		go processSequences(&processedWg, inputChannel, processedChannel, errorsChannel, extractor, table)

		var writer io.WriteCloser
		if outputPath != "" {
			dest := util.PathJoinSafe(outputPath, "result.jsonl")
			writer, err = util.FileSystem.NewWriter(ctx.Context, dest, os.ModePerm)
			if err != nil {
				return err
			}
			defer func() {
				err = errors.Join(err, writer.Close())
			}()
		} else {
			writer = os.Stdout
		}
		writeWg.Add(1)
		go writeOutputs(&writeWg, processedChannel, errorsChannel, writer)

		// read inputs

		exists := false
		if inputPath != "" {
			exists, err = util.FileSystem.Exists(ctx.Context, inputPath)
			if err != nil {
				return err
			}
		}

		if exists {
			fileWalker := func(_ context.Context, _ string, _ string, info os.FileInfo, reader io.Reader) (toContinue bool, err error) {
				if filepath.Ext(info.Name()) == ".jsonl" {
					if err := readInputs(reader, inputChannel); err != nil {
						return false, err
					}
				}
				return true, nil
			}
			if err := util.FileSystem.Walk(ctx.Context, inputPath, fileWalker); err != nil {
				return err
			}
		} else {
			if inputPath != "" {
				return fmt.Errorf("file %s does not exist", inputPath)
			}
			if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
				// there is something to process on stdin
				if err := readInputs(os.Stdin, inputChannel); err != nil {
					return err
				}
			}
		}

		close(inputChannel)
		processedWg.Wait()
		close(processedChannel)
		close(errorsChannel)
		writeWg.Wait()
		return err
	},
}

func main() {
	app := &cli.App{
		Name:     "wordseek",
		Usage:    "Find known-vocabulary words inside unsegmented text",
		Commands: []*cli.Command{runCommand},
	}
	if err := app.Run(os.Args); err != nil {
		panic(err)
	}
}

func loadEmbeddingTable(path string) (wordseek.EmbeddingTable, error) {
	raw, err := util.ReadFileBytes(path)
	if err != nil {
		return nil, err
	}
	var table wordseek.EmbeddingTable
	if err := jsoniter.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("parsing embeddings from %s: %w", path, err)
	}
	return table, nil
}

func readInputs(inputSource io.Reader, inputChannel chan []input) error {
	inputBatch := make([]input, 0, batchSize)
	reader := bufio.NewReader(inputSource)
	for {
		line, err := util.ReadLine(reader)
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if len(line) > 0 {
			var lineInput input
			if unmarshalErr := jsoniter.Unmarshal(line, &lineInput); unmarshalErr != nil {
				return fmt.Errorf("parsing input line: %w", unmarshalErr)
			}
			inputBatch = append(inputBatch, lineInput)
			if len(inputBatch) == batchSize {
				inputChannel <- inputBatch
				inputBatch = make([]input, 0, batchSize)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
	}
	if len(inputBatch) > 0 {
		inputChannel <- inputBatch
	}
	return nil
}

func processSequences(wg *sync.WaitGroup, inputChannel chan []input, processedChannel chan []byte, errorsChannel chan error, extractor *wordseek.Extractor, table wordseek.EmbeddingTable) {
	defer wg.Done()

	unitRepr, err := extractor.UnitEmbeddings(table)
	if err != nil {
		errorsChannel <- err
		return
	}

	for inputBatch := range inputChannel {
		sequences := make([]string, len(inputBatch))
		for i := range inputBatch {
			sequences[i] = inputBatch[i].Sequence
		}

		batch, err := extractor.EncodeBatch(sequences, table)
		if err != nil {
			errorsChannel <- err
			continue
		}
		result, err := extractor.ExtractEval(batch, unitRepr)
		if err != nil {
			errorsChannel <- err
			continue
		}

		for b := range sequences {
			out := output{
				Sequence: sequences[b],
				Start:    result.BestStart[b],
				End:      result.BestEnd[b],
				Score:    result.BestScore[b],
				Matched:  result.Matched[b],
			}
			if result.BestVocab[b] >= 0 {
				out.Word = extractor.Vocabulary.Entries[result.BestVocab[b]].Word
			}
			marshalled, err := jsoniter.Marshal(out)
			if err != nil {
				errorsChannel <- err
				continue
			}
			processedChannel <- marshalled
		}
	}
}

func writeOutputs(wg *sync.WaitGroup, processedChannel chan []byte, errorChannel chan error, writeTarget io.WriteCloser) {
	for processedChannel != nil || errorChannel != nil {
		select {
		case out, ok := <-processedChannel:
			if !ok {
				processedChannel = nil
				continue
			}
			if _, err := writeTarget.Write(out); err != nil {
				panic(err)
			}
			if _, err := writeTarget.Write([]byte("\n")); err != nil {
				panic(err)
			}
		case err, ok := <-errorChannel:
			if !ok {
				errorChannel = nil
				continue
			}
			if err != nil {
				if _, werr := os.Stderr.WriteString(err.Error() + "\n"); werr != nil {
					panic(werr)
				}
			}
		}
	}
	wg.Done()
}
