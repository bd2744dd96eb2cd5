package repository

import (
	"testing"
)

func TestBuildLikeConditionByDialect(t *testing.T) {
	condition, argCount := buildLikeConditionByDialect("sqlite", []string{"description", " ", "admin_notes"})
	if argCount != 2 {
		t.Fatalf("arg count want 2 got %d", argCount)
	}
	if condition != `description LIKE ? ESCAPE '\' OR admin_notes LIKE ? ESCAPE '\'` {
		t.Fatalf("unexpected sqlite condition %s", condition)
	}

	condition, _ = buildLikeConditionByDialect("postgres", []string{"description"})
	if condition != "description ILIKE ?" {
		t.Fatalf("unexpected postgres condition %s", condition)
	}
}

func TestBuildLikeConditionDefaultsToSQLite(t *testing.T) {
	condition, argCount := buildLikeCondition(nil, []string{"description"})
	if argCount != 1 || condition != `description LIKE ? ESCAPE '\'` {
		t.Fatalf("nil db must use sqlite dialect, got %s (%d)", condition, argCount)
	}
}

func TestRepeatLikeArgs(t *testing.T) {
	args := repeatLikeArgs("%test%", 3)
	if len(args) != 3 {
		t.Fatalf("args len want 3 got %d", len(args))
	}
	for idx, arg := range args {
		if arg != "%test%" {
			t.Fatalf("args[%d] want %%test%% got %v", idx, arg)
		}
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`50%_off\`); got != `50\%\_off\\` {
		t.Fatalf("unexpected escaped keyword %s", got)
	}
}
