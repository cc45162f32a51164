// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.10.13
//

package main

import (
	"bufio"
	"cmp"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"

	m "github.com/mkhts/gopvt"
)

func main() {

	// Parse command line arguments
	args, err := parseArgs()
	if err != nil {
		flag.Usage()
		os.Exit(1)
	}

	// Run the main application
	if err := runApplication(args); err != nil {
		m.PrintE(err)
		os.Exit(1)
	}
}

// Main application processing
func runApplication(args cmdOpt) error {

	// Load measurement file
	epochs, err := readMeas(args.measFn)
	if err != nil {
		return fmt.Errorf("failed to read measurement file: %w", err)
	}
	if len(epochs) == 0 {
		return fmt.Errorf("no epochs in %s", args.measFn)
	}

	// Prepare output file
	pos, err := prepareOutput(args)
	if err != nil {
		return fmt.Errorf("failed to prepare output: %w", err)
	}
	defer closeOutput(pos)

	// Print header
	if !args.noPosHeader {
		printPosHeader(pos, os.Args[0], args.measFn, epochs)
	}

	// Process epochs
	return processEpochs(args, epochs, pos)
}

// Measurements of one epoch
type epoch struct {
	time epochKey
	meas []m.Meas
}

// Epoch grouping key
type epochKey struct {
	Week int
	Sec  float64
}

// Process epochs
func processEpochs(args cmdOpt, epochs []*epoch, pos io.Writer) error {

	opt := m.NewSolverOpt()
	opt.NoRaim = args.noRaim

	// One solver for the whole run, so each epoch warm-starts from the previous one
	solver := m.NewSolver(opt)
	if args.seed.Lat != 0 || args.seed.Lon != 0 || args.seed.Hei != 0 {
		solver.Seed(args.seed.ToXYZ())
	}

	for _, ep := range epochs {
		sol, dops, st := solver.Solve(ep.meas)
		if st.Failed() {
			m.PrintB(m.GTime{Week: ep.time.Week, Sec: ep.time.Sec}, "epoch skipped: %s\n", st)
			continue
		}
		printPos(pos, sol, dops, st)
	}

	return nil
}

// Read a measurement file. One line per satellite:
//
//	week sec sat pseudorange doppler sat_x sat_y sat_z sat_vx sat_vy sat_vz
//
// Lines sharing week/sec form one epoch. '#' starts a comment.
func readMeas(fn string) ([]*epoch, error) {

	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var epochs []*epoch
	var cur *epoch

	sc := bufio.NewScanner(f)
	ln := 0
	for sc.Scan() {
		ln++
		line := sc.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 11 {
			return nil, fmt.Errorf("line %d: expected 11 fields, got %d", ln, len(fields))
		}

		week, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: bad week: %w", ln, err)
		}
		nums := make([]string, 0, 9)
		nums = append(nums, fields[1])
		nums = append(nums, fields[3:]...)
		v := make([]float64, 9)
		for i, s := range nums {
			v[i], err = strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad number %q: %w", ln, s, err)
			}
		}

		mm := m.Meas{
			Sat:    m.SatType(fields[2]),
			Pr:     v[1],
			Dp:     v[2],
			SatPos: m.PosXYZ{X: v[3], Y: v[4], Z: v[5]},
			SatVel: m.PosXYZ{X: v[6], Y: v[7], Z: v[8]},
			Tot:    m.GTime{Week: week, Sec: v[0] - v[1]/m.C},
		}

		key := epochKey{Week: week, Sec: v[0]}
		if cur == nil || cur.time != key {
			cur = &epoch{time: key}
			epochs = append(epochs, cur)
		}

		// A satellite can appear only once per epoch
		if slices.ContainsFunc(cur.meas, func(x m.Meas) bool { return x.Sat == mm.Sat }) {
			return nil, fmt.Errorf("line %d: duplicate satellite %s in epoch", ln, mm.Sat)
		}
		cur.meas = append(cur.meas, mm)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	// Lines arrive grouped by epoch but not necessarily in time order
	slices.SortStableFunc(epochs, func(a, b *epoch) int {
		if a.time.Week != b.time.Week {
			return a.time.Week - b.time.Week
		}
		return cmp.Compare(a.time.Sec, b.time.Sec)
	})

	return epochs, nil
}

// Prepare output file
func prepareOutput(args cmdOpt) (io.WriteCloser, error) {

	// Use stdout if no output file is specified
	if len(args.posFn) == 0 {
		return &nopCloser{os.Stdout}, nil
	}

	// Create output file
	posf, err := os.Create(args.posFn)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return posf, nil
}

// Close output file
func closeOutput(pos io.WriteCloser) {
	if pos != nil {
		pos.Close()
	}
}

// nopCloser - WriteCloser that ignores close operations
type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// Structure to hold command line argument information
type cmdOpt struct {
	measFn      string
	posFn       string
	noRaim      bool
	noPosHeader bool
	seed        m.PosLLH
}

// Parse command line arguments
func parseArgs() (a cmdOpt, err error) {
	flag.Usage = func() {
		m.PrintA(`
[Usage]
	%s [Options] meas_file.txt

[Options]
`, filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.StringVar(&a.posFn, "o", "", "Output pos file path. If not specified, output to stdout.")
	flag.BoolVar(&a.noPosHeader, "nh", false, "Do not output header section of pos file.")
	flag.BoolVar(&a.noRaim, "nr", false, "Disable the RAIM check and repair.")
	var seed string
	flag.StringVar(&seed, "l", "", "A priori receiver position to seed the first epoch. Enclose in quotes like -l \"35.73101206 139.7396917 80.33\"")
	var dbg int
	flag.IntVar(&dbg, "x", 0, "Debug information display. Specify level value. 0(OFF), 1(display), 2(detailed display), 3(more detailed), 4(most detailed)")
	flag.Parse()

	if flag.NArg() != 1 {
		return a, fmt.Errorf("too less or many arguments")
	}
	a.measFn = flag.Arg(0)

	if seed != "" {
		f := strings.Fields(seed)
		if len(f) != 3 {
			return a, fmt.Errorf("the seed position needs three values (-l option)")
		}
		var lat, lon, hei float64
		if lat, err = strconv.ParseFloat(f[0], 64); err != nil {
			return a, err
		}
		if lon, err = strconv.ParseFloat(f[1], 64); err != nil {
			return a, err
		}
		if hei, err = strconv.ParseFloat(f[2], 64); err != nil {
			return a, err
		}
		a.seed = m.PosLLH{Lat: m.ToRad(lat), Lon: m.ToRad(lon), Hei: hei}
	}

	m.DBG_ = dbg
	return
}

// Print pos file header
func printPosHeader(pos io.Writer, cmd, measFn string, epochs []*epoch) {
	fmt.Fprintf(pos, "%% program   : %s\n", filepath.Base(cmd))
	fmt.Fprintf(pos, "%% inp file  : %s\n", measFn)
	first := epochs[0].time
	last := epochs[len(epochs)-1].time
	fmt.Fprintf(pos, "%% obs start : week%d %9.3fs (GPST)\n", first.Week, first.Sec)
	fmt.Fprintf(pos, "%% obs end   : week%d %9.3fs (GPST)\n", last.Week, last.Sec)
	fmt.Fprintf(pos, "%%  GPST                 latitude(deg) longitude(deg)  height(m)   Q  ns      clk_bias(s)    vn(m/s)    ve(m/s)    vd(m/s)       gdop       pdop       hdop       vdop\n")
}

// Print one solution line
func printPos(pos io.Writer, sol *m.Solution, dops *m.Dops, st m.Status) {
	fmt.Fprintf(pos, "%s %14.9f %14.9f %10.4f %3d %3d %16.9e %10.4f %10.4f %10.4f %10.4f %10.4f %10.4f %10.4f\n",
		sol.Time.ToTime().UTC().Format("2006/01/02 15:04:05.000"),
		m.ToDeg(sol.LLH.Lat), m.ToDeg(sol.LLH.Lon), sol.LLH.Hei,
		int(st), sol.NUsed, sol.ClkOff,
		sol.VelNed.N, sol.VelNed.E, sol.VelNed.D,
		dops.GDop, dops.PDop, dops.HDop, dops.VDop)
}
