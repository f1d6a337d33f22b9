package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusight/cluster-cli/internal/store"
)

const progressHeader = "student_id,course_id,attendance_rate,completion_rate,overall_progress,task_count,completed_tasks,late_submissions,average_score\n"

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "progress.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestImportProgressCSV(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	path := writeCSV(t, progressHeader+
		"s1,101,85.5,70,75.2,10,7,1,82\n"+
		"s2,101,40,30,35,10,3,4,45\n"+
		"s3,202,90,95,92,20,19,0,96\n")

	n, err := ImportProgressCSV(ctx, st, path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	progress, err := st.CourseProgress(ctx, "s1", 101)
	require.NoError(t, err)
	assert.Equal(t, 85.5, progress.AttendanceRate)
	assert.Equal(t, 70.0, progress.CompletionRate)
	assert.Equal(t, 75.2, progress.OverallProgress)
	assert.Equal(t, 10, progress.TaskCount)
	assert.Equal(t, 7, progress.CompletedTasks)
	assert.Equal(t, 1, progress.LateSubmissions)
	assert.Equal(t, 82.0, progress.AverageScore)

	students, err := st.ListStudents(ctx, 101)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"s1", "s2"}, students)

	courses, err := st.ListCourses(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{101, 202}, courses)
}

func TestImportProgressCSVUpsertsExistingRows(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first := writeCSV(t, progressHeader+"s1,101,50,50,50,10,5,2,50\n")
	_, err := ImportProgressCSV(ctx, st, first)
	require.NoError(t, err)

	second := writeCSV(t, progressHeader+"s1,101,80,75,78,12,9,1,81\n")
	n, err := ImportProgressCSV(ctx, st, second)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	progress, err := st.CourseProgress(ctx, "s1", 101)
	require.NoError(t, err)
	assert.Equal(t, 80.0, progress.AttendanceRate)
	assert.Equal(t, 12, progress.TaskCount)
}

func TestImportProgressCSVRejectsBadHeader(t *testing.T) {
	st := newTestStore(t)
	path := writeCSV(t, "student_id,course_id\ns1,101\n")

	_, err := ImportProgressCSV(context.Background(), st, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 9 columns")
}

func TestImportProgressCSVRejectsRenamedColumn(t *testing.T) {
	st := newTestStore(t)
	header := "student_id,course,attendance_rate,completion_rate,overall_progress,task_count,completed_tasks,late_submissions,average_score\n"
	path := writeCSV(t, header+"s1,101,85,70,75,10,7,1,82\n")

	_, err := ImportProgressCSV(context.Background(), st, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `column 2 is "course"`)
}

func TestImportProgressCSVReportsBadRowLine(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	path := writeCSV(t, progressHeader+
		"s1,101,85,70,75,10,7,1,82\n"+
		"s2,101,not-a-number,30,35,10,3,4,45\n")

	n, err := ImportProgressCSV(ctx, st, path)
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, err.Error(), "line 3")
	assert.Contains(t, err.Error(), "attendance_rate")
}

func TestImportProgressCSVMissingFile(t *testing.T) {
	st := newTestStore(t)
	_, err := ImportProgressCSV(context.Background(), st, filepath.Join(t.TempDir(), "absent.csv"))
	require.Error(t, err)
}
