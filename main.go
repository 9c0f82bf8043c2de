package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"purple_rc/pkg/arena"
	"purple_rc/pkg/memory"
	"purple_rc/pkg/metrics"
	"purple_rc/pkg/parser"
	"purple_rc/pkg/plist"
	"purple_rc/pkg/ptree"
	"purple_rc/pkg/rc"
)

var (
	listExpr   = flag.String("list", "", "Build a persistent list from a literal, e.g. '(1 2 3)'")
	concatExpr = flag.String("concat", "", "Concatenate this literal onto -list")
	reverse    = flag.Bool("reverse", false, "Reverse -list")
	treeExpr   = flag.String("tree", "", "Build a persistent tree by inserting the literal's values in order")
	insertExpr = flag.String("insert", "", "Insert each value in the literal into -tree")
	deleteExpr = flag.String("delete", "", "Delete each value in the literal from -tree")
	containsV  = flag.String("contains", "", "Check tree membership for each value in the literal")
	stressN    = flag.Int("stress", 0, "Build and free a degenerate list and tree of N nodes")
	arenaN     = flag.Int("arena", 0, "Allocate N tree nodes from an arena pool")
	arenaCap   = flag.Int("arena-cap", 4, "Initial arena subpool capacity")
	limit      = flag.Uint64("limit", 0, "Byte limit for the allocator (0 = unlimited)")
	showMetric = flag.Bool("metrics", false, "Print Prometheus metrics on exit")
	verbose    = flag.Bool("v", false, "Verbose output")
)

// arenaNode is the node shape carved from the arena pool.
type arenaNode struct {
	value       int64
	left, right *arenaNode
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Purple RC - Refcounted Persistent Structures\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -list '(1 2 3)' -reverse              # [3,2,1]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -list '(1 2 3)' -concat '(4 5)'       # [1,2,3,4,5]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -tree '(5 2 4 8)' -delete 5           # {2,4,8}\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -stress 100000 -v                      # deep free, flat stack\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -arena 10 -arena-cap 3 -metrics        # bump allocation\n", os.Args[0])
	}
	flag.Parse()

	log.SetFlags(0)
	log.SetPrefix("purple_rc: ")

	alloc := memory.NewCountingAllocator(*limit)
	h := rc.NewHeap(alloc)
	collector := metrics.NewCollector()
	collector.AddHeap("main", h)
	collector.AddAllocator("main", alloc)

	if *listExpr != "" {
		if err := runList(os.Stdout, h); err != nil {
			log.Fatalf("list: %v", err)
		}
	}
	if *treeExpr != "" {
		if err := runTree(os.Stdout, h); err != nil {
			log.Fatalf("tree: %v", err)
		}
	}
	if *stressN > 0 {
		if err := runStress(os.Stdout, h, *stressN); err != nil {
			log.Fatalf("stress: %v", err)
		}
	}
	if *arenaN > 0 {
		pool, err := runArena(os.Stdout, alloc, *arenaN)
		if err != nil {
			log.Fatalf("arena: %v", err)
		}
		collector.AddPool("main", pool)
	}

	if *verbose {
		fmt.Print(h.Stats().String())
	}
	if *showMetric {
		if err := printMetrics(collector); err != nil {
			log.Fatalf("metrics: %v", err)
		}
	}
	if err := checkLeaks(alloc); err != nil {
		log.Fatal(err)
	}
}

// checkLeaks fails if anything reserved from alloc was never released.
func checkLeaks(alloc *memory.CountingAllocator) error {
	if n := alloc.Outstanding(); n != 0 {
		return errors.Newf("leak: %d allocations outstanding (%d bytes)", n, alloc.LiveBytes())
	}
	return nil
}

func parseList(h *rc.Heap, expr string) (plist.List[int64], error) {
	vs, err := parser.ParseInts(expr)
	if err != nil {
		return plist.Nil[int64](), err
	}
	return plist.FromSlice(h, vs)
}

func runList(w io.Writer, h *rc.Heap) error {
	x, err := parseList(h, *listExpr)
	if err != nil {
		return err
	}
	defer x.Release()
	fmt.Fprintf(w, "list:    %s (length %d)\n", x, plist.Length(x.Retain()))

	if *reverse {
		r, err := plist.Reverse(h, x.Retain())
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "reverse: %s\n", r)
		r.Release()
	}
	if *concatExpr != "" {
		y, err := parseList(h, *concatExpr)
		if err != nil {
			return err
		}
		c, err := plist.Concat(h, x.Retain(), y)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "concat:  %s\n", c)
		c.Release()
	}
	return nil
}

func runTree(w io.Writer, h *rc.Heap) error {
	vs, err := parser.ParseInts(*treeExpr)
	if err != nil {
		return err
	}
	t, err := ptree.FromValues(h, vs...)
	if err != nil {
		return err
	}
	defer func() { t.Release() }()
	fmt.Fprintf(w, "tree:    %s (size %d, height %d)\n", t, ptree.Size(t), ptree.Height(t))

	if *containsV != "" {
		probes, err := parser.ParseInts(*containsV)
		if err != nil {
			return err
		}
		for _, v := range probes {
			fmt.Fprintf(w, "contains %d: %v\n", v, ptree.Contains(t, v))
		}
	}
	if *insertExpr != "" {
		vs, err := parser.ParseInts(*insertExpr)
		if err != nil {
			return err
		}
		for _, v := range vs {
			if t, err = ptree.Insert(h, t, v); err != nil {
				return err
			}
			fmt.Fprintf(w, "insert %d: %s\n", v, t)
		}
	}
	if *deleteExpr != "" {
		vs, err := parser.ParseInts(*deleteExpr)
		if err != nil {
			return err
		}
		for _, v := range vs {
			if t, err = ptree.Delete(h, t, v); err != nil {
				return err
			}
			fmt.Fprintf(w, "delete %d: %s\n", v, t)
		}
	}
	return nil
}

func runStress(w io.Writer, h *rc.Heap, n int) error {
	l := plist.Nil[int64]()
	for i := 0; i < n; i++ {
		var err error
		if l, err = plist.Cons(h, int64(i), l); err != nil {
			return err
		}
	}
	if *verbose {
		log.Printf("built list of %d nodes, %d live objects", n, h.Stats().Live())
	}
	l.Release()

	t := ptree.Empty[int64]()
	for i := n - 1; i >= 0; i-- {
		var err error
		if t, err = ptree.Node(h, int64(i), ptree.Empty[int64](), t); err != nil {
			return err
		}
	}
	if *verbose {
		log.Printf("built degenerate tree of height %d", ptree.Height(t))
	}
	t.Release()

	fmt.Fprintf(w, "stress:  freed %d list nodes and %d tree nodes, max pending %d\n", n, n, h.Stats().MaxPending)
	return nil
}

func runArena(w io.Writer, alloc memory.Allocator, n int) (*arena.Pool[arenaNode], error) {
	pool, err := arena.NewPool[arenaNode](alloc, *arenaCap)
	if err != nil {
		return nil, err
	}

	// Chain the nodes into a right spine so they are actually used.
	var root, last *arenaNode
	for i := 0; i < n; i++ {
		node, err := pool.Alloc()
		if err != nil {
			pool.Free()
			return nil, err
		}
		node.value = int64(i)
		if last == nil {
			root = node
		} else {
			last.right = node
		}
		last = node
	}
	depth := 0
	for node := root; node != nil; node = node.right {
		depth++
	}

	s := pool.Stats()
	fmt.Fprintf(w, "arena:   %d nodes (chain %d) in %d subpools, capacity %d, %d bytes\n",
		pool.Len(), depth, s.Subpools, s.Capacity, s.ReservedBytes)
	pool.Free()
	return pool, nil
}

func printMetrics(c prometheus.Collector) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		return err
	}
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(os.Stdout, mf); err != nil {
			return err
		}
	}
	return nil
}
