package rawdump_test

import (
	"bufio"
	"os"
	"strings"
	"testing"

	"github.com/m-lab/netpace/client"
	"github.com/m-lab/netpace/rawdump"
	"github.com/m-lab/netpace/tsc"
)

func TestWriteRecordsProducesExpectedColumns(t *testing.T) {
	dir := t.TempDir()
	prefix := dir + "/phase"

	w, err := rawdump.New(prefix, 32, 1000, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	recs := []client.Record{
		{TsSend: 2000, TsRecv: 2500, Seq: 1, SendLateness: 100},
		{TsSend: 3000, TsRecv: 3600, Seq: 2, SendLateness: 0},
	}
	latencies := []int64{500, 600}

	if err := w.WriteRecords(tsc.NanoClock{}, 1000, recs, latencies); err != nil {
		t.Fatalf("WriteRecords: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(w.Path())
	if err != nil {
		t.Fatalf("could not reopen output: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3 (header + 2 rows)", len(lines))
	}
	if !strings.HasPrefix(lines[0], "#send-target") {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	fields := strings.Split(lines[1], "\t")
	if len(fields) != 3 {
		t.Fatalf("expected 3 tab-separated fields, got %d: %q", len(fields), lines[1])
	}
}

func TestWriteRecordsLengthMismatch(t *testing.T) {
	dir := t.TempDir()
	w, err := rawdump.New(dir+"/phase", 32, 1000, false)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	err = w.WriteRecords(tsc.NanoClock{}, 0, []client.Record{{}}, nil)
	if err == nil {
		t.Fatal("expected an error for mismatched slice lengths")
	}
}

func TestWriteCSVSummary(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/summary.csv"
	rows := []rawdump.PhaseSummary{
		{MsgPerSecTarget: 1000, MsgPerSecTx: 995, MsgPerSecRx: 990, Samples: 10},
	}
	if err := rawdump.WriteCSVSummary(path, rows); err != nil {
		t.Fatalf("WriteCSVSummary: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "msg_per_sec_target") {
		t.Fatalf("expected header in CSV output, got: %q", data)
	}
}
