package service

import (
	"context"
	"strings"
	"testing"
	"time"
)

// newTestJanitor собирает janitor поверх окружения из share_test.go.
func newTestJanitor(t *testing.T, env *testEnv, interval time.Duration) *Janitor {
	t.Helper()
	return NewJanitor(env.store, env.reg, env.clk, interval, testLogger())
}

// TestJanitor_PurgeExpired проверяет страховочное удаление истёкших
// записей вместе с их blob-ами.
func TestJanitor_PurgeExpired(t *testing.T) {
	env := newTestEnv(t)
	j := newTestJanitor(t, env, 10*time.Minute)
	ctx := context.Background()

	if _, shareErr := env.svc.SubmitUpload(ctx, strings.NewReader("old"), "old.txt", "text/plain", -1); shareErr != nil {
		t.Fatalf("ошибка загрузки: %v", shareErr)
	}

	env.clk.Advance(time.Hour + time.Second)

	res := j.RunOnce(ctx)
	if res.ExpiredCount != 1 {
		t.Errorf("ExpiredCount = %d, ожидалась 1", res.ExpiredCount)
	}
	if env.reg.Count() != 0 {
		t.Errorf("в реестре осталось %d записей", env.reg.Count())
	}
	if n := env.blobCount(t); n != 0 {
		t.Errorf("в хранилище осталось %d blob-ов", n)
	}
}

// TestJanitor_FreshRecordsUntouched проверяет, что живые записи
// и их blob-ы проход не трогает.
func TestJanitor_FreshRecordsUntouched(t *testing.T) {
	env := newTestEnv(t)
	j := newTestJanitor(t, env, 10*time.Minute)
	ctx := context.Background()

	rec, shareErr := env.svc.SubmitUpload(ctx, strings.NewReader("fresh"), "fresh.txt", "text/plain", -1)
	if shareErr != nil {
		t.Fatalf("ошибка загрузки: %v", shareErr)
	}

	res := j.RunOnce(ctx)
	if res.ExpiredCount != 0 || res.OrphanCount != 0 {
		t.Errorf("проход не должен ничего удалять: %+v", res)
	}

	if _, shareErr := env.svc.GetInfo(rec.Code); shareErr != nil {
		t.Errorf("живая запись пострадала от прохода: %+v", shareErr)
	}
}

// TestJanitor_DeleteOrphans проверяет удаление blob-ов без живой
// записи после истечения grace-периода.
func TestJanitor_DeleteOrphans(t *testing.T) {
	env := newTestEnv(t)
	interval := 10 * time.Minute
	j := newTestJanitor(t, env, interval)
	ctx := context.Background()

	// Blob без записи реестра — например, оставшийся от предыдущего
	// запуска процесса
	if _, err := env.store.Save(ctx, strings.NewReader("orphan"), "orphan.bin"); err != nil {
		t.Fatalf("ошибка записи blob-а: %v", err)
	}

	// Внутри grace-периода сирота не трогается: это может быть
	// загрузка между Save и Create
	res := j.RunOnce(ctx)
	if res.OrphanCount != 0 {
		t.Fatalf("молодой blob удалён до истечения grace-периода")
	}
	if n := env.blobCount(t); n != 1 {
		t.Fatalf("в хранилище %d blob-ов, ожидался 1", n)
	}

	env.clk.Advance(2 * interval)

	res = j.RunOnce(ctx)
	if res.OrphanCount != 1 {
		t.Errorf("OrphanCount = %d, ожидалась 1", res.OrphanCount)
	}
	if n := env.blobCount(t); n != 0 {
		t.Errorf("осиротевший blob не удалён: %d blob-ов", n)
	}
}

// TestJanitor_LiveBlobsNotOrphans проверяет, что blob живой записи
// не считается сиротой независимо от возраста.
func TestJanitor_LiveBlobsNotOrphans(t *testing.T) {
	env := newTestEnv(t)
	interval := time.Minute
	j := newTestJanitor(t, env, interval)
	ctx := context.Background()

	// TTL 1h, grace 1m: запись переживает много grace-периодов
	rec, shareErr := env.svc.SubmitUpload(ctx, strings.NewReader("data"), "a.txt", "text/plain", -1)
	if shareErr != nil {
		t.Fatalf("ошибка загрузки: %v", shareErr)
	}

	env.clk.Advance(30 * time.Minute)

	res := j.RunOnce(ctx)
	if res.OrphanCount != 0 {
		t.Errorf("blob живой записи удалён как сирота")
	}

	blob, _, shareErr := env.svc.FetchDownload(ctx, rec.Code)
	if shareErr != nil {
		t.Fatalf("файл недоступен после прохода: %+v", shareErr)
	}
	blob.Close()
}
