package disk

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/telemetrydev/bufferline/internal/core/ports"
)

const dataFileExt = ".dat"

// dataFileName returns the file name for a data file id, e.g. "3.dat".
func dataFileName(id uint64) string {
	return fmt.Sprintf("%d%s", id, dataFileExt)
}

// parseDataFileID extracts the id from a data file name.
func parseDataFileID(name string) (uint64, bool) {
	if !strings.HasSuffix(name, dataFileExt) {
		return 0, false
	}

	id, err := strconv.ParseUint(strings.TrimSuffix(name, dataFileExt), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// listDataFiles returns the ids of all data files in ascending order.
func listDataFiles(storage ports.Storage) ([]uint64, error) {
	names, err := storage.List()
	if err != nil {
		return nil, err
	}

	ids := make([]uint64, 0, len(names))
	for _, name := range names {
		if id, ok := parseDataFileID(name); ok {
			ids = append(ids, id)
		}
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// fileScan is the result of walking a data file's frames.
type fileScan struct {
	// validEnd is the offset just past the last fully valid frame.
	validEnd uint64

	// records is the number of valid frames seen from the scan start.
	records uint64

	// lastRecordID is the id of the last valid frame, 0 if none.
	lastRecordID uint64
}

// scanDataFile walks frames from the given offset until the first
// incomplete or invalid frame, which is treated as the end of valid data
// (the partial-write-from-a-crash case). Only backend I/O errors are
// returned.
func scanDataFile(
	storage ports.Storage,
	checksum ports.Checksum,
	name string,
	from uint64,
	maxRecordSize uint64,
) (fileScan, error) {
	scan := fileScan{validEnd: from}

	file, err := storage.OpenRead(name)
	if err != nil {
		return scan, err
	}
	defer file.Close()

	fr := &frameReader{file: file, checksum: checksum, maxRecordSize: maxRecordSize}
	offset := from

	for {
		record, frameSize, err := fr.readAt(offset)
		if err != nil {
			if errors.Is(err, errFramePending) || errors.Is(err, errFrameInvalid) {
				return scan, nil
			}
			return scan, err
		}

		offset += frameSize
		scan.validEnd = offset
		scan.records++
		scan.lastRecordID = record.ID
	}
}
