package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/histcache"
	"github.com/hyp3rd/histcache/pkg/aggregate"
)

const bytesPerMB = 1 << 20

// printCollection writes one line per aggregate followed by the totals.
func printCollection(out io.Writer, c *histcache.Collection) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "IDENTIFIER\tNAME\tKIND\tENTRIES\tSUMW\tBYTES")

	for _, key := range c.Keys() {
		agg, ok := c.Get(key.Identifier, key.Name)
		if !ok {
			continue
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%g\t%d\n",
			key.Identifier, key.Name, agg.Kind(), agg.Entries(), agg.SumW(), agg.SizeBytes())
	}

	err := tw.Flush()
	if err != nil {
		return ewrap.Wrap(err, "write summary")
	}

	stats := c.Stats()
	_, err = fmt.Fprintf(out, "\ncollection %s (%s): %d objects, %.2f MB, lineage %v\n",
		stats.ID, stats.Name, stats.Objects, float64(stats.SizeBytes)/bytesPerMB, stats.Lineage)

	return err
}

// printSnapshots lists stored snapshots without decoding their aggregates.
func printSnapshots(out io.Writer, snaps []*histcache.Snapshot) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "ID\tNAME\tOBJECTS\tLINEAGE\tCREATED")

	for _, snap := range snaps {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
			snap.ID, snap.Name, len(snap.Objects), len(snap.Lineage), snap.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	return tw.Flush()
}

// writeYODA writes every counter and distribution of c to path as YODA text.
// Profiles and sparse aggregates have no YODA rendering here and are skipped.
func writeYODA(path string, c *histcache.Collection) (int, error) {
	var buf bytes.Buffer

	written := 0

	for _, key := range c.Keys() {
		agg, ok := c.Get(key.Identifier, key.Name)
		if !ok {
			continue
		}

		if agg.Kind() != aggregate.KindCounter && agg.Kind() != aggregate.KindDistribution {
			continue
		}

		raw, err := agg.MarshalYODA(key.Identifier + "/" + key.Name)
		if err != nil {
			return 0, err
		}

		buf.Write(raw)
		buf.WriteByte('\n')

		written++
	}

	err := os.WriteFile(path, buf.Bytes(), filePerm)
	if err != nil {
		return 0, ewrap.Wrapf(err, "write yoda %s", path)
	}

	return written, nil
}

// writeSnapshotFile encodes snap with format and writes it to path.
func writeSnapshotFile(path, format string, snap *histcache.Snapshot) error {
	data, err := histcache.EncodeSnapshot(snap, format)
	if err != nil {
		return err
	}

	err = os.WriteFile(path, data, filePerm)
	if err != nil {
		return ewrap.Wrapf(err, "write snapshot %s", path)
	}

	return nil
}

// readSnapshotFile reads a snapshot written by writeSnapshotFile.
func readSnapshotFile(path, format string) (*histcache.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ewrap.Wrapf(err, "read snapshot %s", path)
	}

	return histcache.DecodeSnapshot(data, format)
}

const filePerm = 0o640
