// Package importer loads precomputed student progress aggregates from CSV
// into the store, enrolling students as a side effect.
package importer

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/edusight/cluster-cli/internal/model"
	"github.com/edusight/cluster-cli/internal/store"
)

// progressColumns is the expected CSV header, in order.
var progressColumns = []string{
	"student_id",
	"course_id",
	"attendance_rate",
	"completion_rate",
	"overall_progress",
	"task_count",
	"completed_tasks",
	"late_submissions",
	"average_score",
}

// ImportProgressCSV loads progress rows from the CSV at path, upserting
// each row and enrolling the student in its course. Returns the number of
// rows imported.
func ImportProgressCSV(ctx context.Context, st store.Store, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, eris.Wrapf(err, "importer: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return 0, eris.Wrap(err, "importer: read header")
	}
	if err := validateHeader(header); err != nil {
		return 0, err
	}

	imported := 0
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return imported, eris.Wrapf(err, "importer: read line %d", line)
		}

		progress, err := parseRecord(record)
		if err != nil {
			return imported, eris.Wrapf(err, "importer: parse line %d", line)
		}

		if err := st.UpsertProgress(ctx, *progress); err != nil {
			return imported, eris.Wrapf(err, "importer: upsert line %d", line)
		}
		if err := st.Enroll(ctx, progress.CourseID, progress.StudentID); err != nil {
			return imported, eris.Wrapf(err, "importer: enroll line %d", line)
		}
		imported++
	}

	zap.L().Info("progress import complete",
		zap.String("path", path),
		zap.Int("rows", imported),
	)
	return imported, nil
}

func validateHeader(header []string) error {
	if len(header) != len(progressColumns) {
		return eris.Errorf("importer: expected %d columns, got %d", len(progressColumns), len(header))
	}
	for i, want := range progressColumns {
		if header[i] != want {
			return eris.Errorf("importer: column %d is %q, want %q", i+1, header[i], want)
		}
	}
	return nil
}

func parseRecord(record []string) (*model.CourseProgress, error) {
	if len(record) != len(progressColumns) {
		return nil, eris.Errorf("expected %d fields, got %d", len(progressColumns), len(record))
	}

	courseID, err := strconv.ParseInt(record[1], 10, 64)
	if err != nil {
		return nil, eris.Wrap(err, "parse course_id")
	}

	floats := make([]float64, 0, 4)
	for _, idx := range []int{2, 3, 4, 8} {
		v, err := strconv.ParseFloat(record[idx], 64)
		if err != nil {
			return nil, eris.Wrapf(err, "parse %s", progressColumns[idx])
		}
		floats = append(floats, v)
	}

	ints := make([]int, 0, 3)
	for _, idx := range []int{5, 6, 7} {
		v, err := strconv.Atoi(record[idx])
		if err != nil {
			return nil, eris.Wrapf(err, "parse %s", progressColumns[idx])
		}
		ints = append(ints, v)
	}

	return &model.CourseProgress{
		StudentID:       record[0],
		CourseID:        courseID,
		AttendanceRate:  floats[0],
		CompletionRate:  floats[1],
		OverallProgress: floats[2],
		AverageScore:    floats[3],
		TaskCount:       ints[0],
		CompletedTasks:  ints[1],
		LateSubmissions: ints[2],
	}, nil
}
