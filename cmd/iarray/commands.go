// Subcommand implementations, one func(args []string) error per command,
// matching the teacher's internal/commands/commands.go shape (InitCommand,
// BuildCommand, WatchCommand, CleanCommand are all the same signature).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"iarray/internal/catalog"
	"iarray/internal/codec"
	"iarray/internal/container"
	"iarray/internal/evaluator"
	"iarray/internal/ierrors"
	"iarray/internal/ishape"
	"iarray/internal/matmul"
	"iarray/internal/parser"
	"iarray/internal/replshell"
)

// openFileContainer opens a gocloud.dev/blob-addressable location (a plain
// filesystem path, "file:///...", "s3://...", etc; a bare path's directory
// becomes a local bucket and its file name the key) and reconstructs the
// container previously written there via CloseWithMeta.
func openFileContainer(ctx context.Context, path string) (*container.Container, error) {
	bucketURL, key := splitLocation(path)
	storage, err := codec.OpenFile(ctx, bucketURL, key)
	if err != nil {
		return nil, err
	}
	return container.FromFile(ctx, storage)
}

// splitLocation turns a bare filesystem path into a "file://<dir>" bucket
// URL plus a key, so `iarray inspect ./data/x.iarr` works without the
// caller spelling out a gocloud scheme.
func splitLocation(path string) (bucketURL, key string) {
	if strings.Contains(path, "://") {
		idx := strings.LastIndex(path, "/")
		return path[:idx], path[idx+1:]
	}
	dir := "."
	name := path
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		dir, name = path[:idx], path[idx+1:]
		if dir == "" {
			dir = "/"
		}
	}
	return "file://" + dir, name
}

func parseDType(s string) (ishape.DType, error) {
	switch s {
	case "", "float64":
		return ishape.Float64, nil
	case "float32":
		return ishape.Float32, nil
	default:
		return 0, ierrors.NewInvalidArgument("unknown dtype %q", s)
	}
}

func inspectCommand(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	verbose := fs.Bool("v", false, "dump the full shape record")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return ierrors.NewInvalidArgument("usage: iarray inspect [-v] <path>")
	}
	ctx := context.Background()
	c, err := openFileContainer(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	defer c.Close()
	fmt.Println(c.Describe())
	if *verbose {
		fmt.Println(c.DebugDump())
	}
	return nil
}

func evalCommand(args []string) error {
	fs := flag.NewFlagSet("eval", flag.ExitOnError)
	var bind stringList
	fs.Var(&bind, "bind", "name=path container binding, repeatable")
	var scalarBind stringList
	fs.Var(&scalarBind, "scalar", "name=value scalar binding, repeatable; broadcast per spec §4.5")
	out := fs.String("out", "", "output container path")
	codecName := fs.String("codec", "zstd", "output codec")
	level := fs.Int("level", 3, "compression level")
	strategy := fs.String("strategy", "chunk", "eval strategy: chunk|block")
	fs.Parse(args)
	if fs.NArg() != 1 || *out == "" {
		return ierrors.NewInvalidArgument("usage: iarray eval -bind name=path [-bind ...] -scalar name=value [-scalar ...] -out <path> <expr>")
	}

	ctx := context.Background()
	bindings := make(map[string]evaluator.Binding)
	for _, kv := range bind {
		name, path, ok := strings.Cut(kv, "=")
		if !ok {
			return ierrors.NewInvalidArgument("bad -bind %q, want name=path", kv)
		}
		c, err := openFileContainer(ctx, path)
		if err != nil {
			return fmt.Errorf("bind %s: %w", name, err)
		}
		defer c.Close()
		bindings[name] = evaluator.ContainerBinding(c)
	}
	for _, kv := range scalarBind {
		name, val, ok := strings.Cut(kv, "=")
		if !ok {
			return ierrors.NewInvalidArgument("bad -scalar %q, want name=value", kv)
		}
		v, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return ierrors.NewInvalidArgument("bad -scalar %q: %v", kv, err)
		}
		bindings[name] = evaluator.ScalarBinding(v)
	}

	p, err := parser.New(fs.Arg(0))
	if err != nil {
		return err
	}
	tree, err := p.Parse()
	if err != nil {
		return err
	}
	compiled, err := evaluator.Compile(tree, bindings, nil)
	if err != nil {
		return err
	}

	id, err := parseCodecName(*codecName)
	if err != nil {
		return err
	}
	strat := evaluator.StrategyChunk
	if *strategy == "block" {
		strat = evaluator.StrategyBlock
	}
	params := codec.Params{CodecID: id, Level: *level}

	bucketURL, key := splitLocation(*out)
	storage, err := codec.OpenFile(ctx, bucketURL, key)
	if err != nil {
		return err
	}

	result, err := compiled.Eval(strat, params, storage)
	if err != nil {
		return err
	}
	defer result.CloseWithMeta(ctx)
	fmt.Println(result.Describe())
	return nil
}

func replCommand(args []string) error {
	sh := replshell.New(nil, evaluator.NewRegistry(), evaluator.StrategyChunk, codec.Params{CodecID: codec.Zstd, Level: 3}, codec.InMemory(), os.Stdout)
	sh.Run(os.Stdin)
	return nil
}

func matmulCommand(args []string) error {
	fs := flag.NewFlagSet("matmul", flag.ExitOnError)
	out := fs.String("out", "", "output container path")
	transA := fs.Bool("transpose-a", false, "transpose A")
	transB := fs.Bool("transpose-b", false, "transpose B")
	portable := fs.Bool("portable", false, "use the portable Go fallback instead of BLAS")
	threads := fs.Int("threads", 1, "max worker threads for block-parallel dispatch")
	fs.Parse(args)
	if fs.NArg() != 2 || *out == "" {
		return ierrors.NewInvalidArgument("usage: iarray matmul -out <path> <a-path> <b-path>")
	}

	ctx := context.Background()
	a, err := openFileContainer(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	defer a.Close()
	b, err := openFileContainer(ctx, fs.Arg(1))
	if err != nil {
		return err
	}
	defer b.Close()

	opts := matmul.Options{
		TransposeA: *transA, TransposeB: *transB, Portable: *portable, MaxThreads: *threads,
		Params:  codec.Params{CodecID: codec.Zstd, Level: 3},
		Storage: codec.InMemory(),
	}
	var result *container.Container
	if b.Shape().NDim == 1 {
		result, err = matmul.Gemv(a, b, opts)
	} else {
		result, err = matmul.Gemm(a, b, opts)
	}
	if err != nil {
		return err
	}
	defer result.Close()

	bucketURL, key := splitLocation(*out)
	storage, err := codec.OpenFile(ctx, bucketURL, key)
	if err != nil {
		return err
	}
	persisted, err := container.FromBuffer(result.Shape(), codec.Params{CodecID: codec.Zstd, Level: 3}, storage, readBuffer(result))
	if err != nil {
		return err
	}
	defer persisted.CloseWithMeta(ctx)
	fmt.Println(persisted.Describe())
	return nil
}

// readBuffer flattens a container's elements into a row-major byte buffer
// of its own dtype, the inverse of container.FromBuffer.
func readBuffer(c *container.Container) []byte {
	rec := c.Shape()
	buf := make([]byte, rec.NItems()*rec.ItemSize)
	r := c.NewElementReader()
	for r.HasNext() {
		v, i, err := r.Next()
		if err != nil {
			break
		}
		container.PutItem(rec.DType, buf, i, v)
	}
	return buf
}

func catalogCommand(args []string) error {
	if len(args) == 0 {
		return ierrors.NewInvalidArgument("usage: iarray catalog <list|register|forget> ...")
	}
	ctx := context.Background()
	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("catalog list", flag.ExitOnError)
		dsn := fs.String("dsn", "", "catalog DSN")
		fs.Parse(args[1:])
		records, err := catalog.List(ctx, *dsn)
		if err != nil {
			return err
		}
		for _, r := range records {
			fmt.Printf("%s  %s  shape=%v  chunk=%v  block=%v  dtype=%s  created=%s\n",
				r.ID, r.Path, r.Shape, r.ChunkShape, r.BlockShape, r.DType, r.CreatedAt.Format("2006-01-02T15:04:05"))
		}
		return nil
	case "register":
		fs := flag.NewFlagSet("catalog register", flag.ExitOnError)
		dsn := fs.String("dsn", "", "catalog DSN")
		path := fs.String("path", "", "container path")
		shape := fs.String("shape", "", "comma-separated shape")
		chunkShape := fs.String("chunk-shape", "", "comma-separated chunk shape")
		blockShape := fs.String("block-shape", "", "comma-separated block shape")
		dtype := fs.String("dtype", "float64", "dtype")
		fs.Parse(args[1:])
		dt, err := parseDType(*dtype)
		if err != nil {
			return err
		}
		id, err := catalog.Register(ctx, *dsn, *path, parseInts(*shape), parseInts(*chunkShape), parseInts(*blockShape), dt)
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	case "forget":
		fs := flag.NewFlagSet("catalog forget", flag.ExitOnError)
		dsn := fs.String("dsn", "", "catalog DSN")
		fs.Parse(args[1:])
		if fs.NArg() != 1 {
			return ierrors.NewInvalidArgument("usage: iarray catalog forget -dsn <dsn> <id>")
		}
		return catalog.Forget(ctx, *dsn, fs.Arg(0))
	default:
		return ierrors.NewInvalidArgument("unknown catalog subcommand %q", args[0])
	}
}

func parseInts(s string) []int {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			continue
		}
		out[i] = n
	}
	return out
}

func parseCodecName(name string) (codec.ID, error) {
	switch name {
	case "", "zstd":
		return codec.Zstd, nil
	case "blosclz":
		return codec.BloscLZ, nil
	case "lz4":
		return codec.LZ4, nil
	case "lz4hc":
		return codec.LZ4HC, nil
	case "snappy":
		return codec.Snappy, nil
	case "zlib":
		return codec.Zlib, nil
	case "lizard":
		return codec.Lizard, nil
	default:
		return 0, ierrors.NewInvalidArgument("unknown codec %q", name)
	}
}

// stringList implements flag.Value for repeatable -bind flags.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}
