package collections

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDeleteAllFuncRemovesEveryMatch(t *testing.T) {
	in := []int{1, 2, 1, 3, 1, 4}
	got := DeleteAllFunc(in, func(e int) bool { return e == 1 })
	want := []int{2, 3, 4}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DeleteAllFunc mismatch (-want +got):\n%s", diff)
	}
}

func TestDeleteAllFuncNoMatch(t *testing.T) {
	in := []int{1, 2, 3}
	got := DeleteAllFunc(in, func(e int) bool { return e == 99 })
	if diff := cmp.Diff([]int{1, 2, 3}, got); diff != "" {
		t.Errorf("DeleteAllFunc(no match) mismatch (-want +got):\n%s", diff)
	}
}

func TestDeleteAndZeroFuncRemovesEveryMatch(t *testing.T) {
	in := []int{1, 2, 3, 2, 1}
	got := DeleteAndZeroFunc(in, func(e int) bool { return e == 2 })
	want := []int{1, 3, 1}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DeleteAndZeroFunc mismatch (-want +got):\n%s", diff)
	}
}
