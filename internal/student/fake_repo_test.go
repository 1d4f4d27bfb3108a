package student_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"student-registry/internal/apperr"
	"student-registry/internal/student"
)

// fakeRepo is an in-memory Repository that mirrors the store's contract,
// including the unique-email constraint as the ultimate authority.
type fakeRepo struct {
	mu      sync.Mutex
	nextID  int
	records map[int]student.Student
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[int]student.Student)}
}

func (f *fakeRepo) Insert(ctx context.Context, s *student.Student) (*student.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.records {
		if existing.Email == s.Email {
			return nil, apperr.Conflict("email %s is already in use", s.Email)
		}
	}

	f.nextID++
	s.ID = f.nextID
	f.records[s.ID] = *s
	return s, nil
}

func (f *fakeRepo) InsertBatch(ctx context.Context, students []student.Student) ([]student.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	seen := make(map[string]bool)
	for i := range students {
		for _, existing := range f.records {
			if existing.Email == students[i].Email {
				return nil, apperr.Conflict("duplicate email violates unique constraint")
			}
		}
		if seen[students[i].Email] {
			return nil, apperr.Conflict("duplicate email violates unique constraint")
		}
		seen[students[i].Email] = true
	}

	for i := range students {
		f.nextID++
		students[i].ID = f.nextID
		f.records[students[i].ID] = students[i]
	}
	return students, nil
}

func (f *fakeRepo) Update(ctx context.Context, s *student.Student) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.records[s.ID]; !ok {
		return apperr.NotFound("student with id %d not found", s.ID)
	}
	for id, existing := range f.records {
		if id != s.ID && existing.Email == s.Email {
			return apperr.Conflict("email %s is already in use", s.Email)
		}
	}
	f.records[s.ID] = *s
	return nil
}

func (f *fakeRepo) Delete(ctx context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.records[id]; !ok {
		return apperr.NotFound("student with id %d not found", id)
	}
	delete(f.records, id)
	return nil
}

func (f *fakeRepo) DeleteByIDs(ctx context.Context, ids []int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	deleted := 0
	for _, id := range ids {
		if _, ok := f.records[id]; ok {
			delete(f.records, id)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeRepo) FindAll(ctx context.Context) ([]student.Student, error) {
	return f.filter(func(student.Student) bool { return true }), nil
}

func (f *fakeRepo) FindByID(ctx context.Context, id int) (*student.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.records[id]
	if !ok {
		return nil, apperr.NotFound("student with id %d not found", id)
	}
	return &s, nil
}

func (f *fakeRepo) FindByEmail(ctx context.Context, email string) (*student.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range f.records {
		if s.Email == email {
			s := s
			return &s, nil
		}
	}
	return nil, apperr.NotFound("student with email %s not found", email)
}

func (f *fakeRepo) FindPage(ctx context.Context, limit, offset int, orderBy string, desc bool) ([]student.Student, int, error) {
	all := f.filter(func(student.Student) bool { return true })

	sort.Slice(all, func(i, j int) bool {
		var less bool
		switch orderBy {
		case "name":
			less = all[i].Name < all[j].Name
		case "age":
			less = all[i].Age < all[j].Age
		case "email":
			less = all[i].Email < all[j].Email
		default:
			less = all[i].ID < all[j].ID
		}
		if desc {
			return !less
		}
		return less
	})

	total := len(all)
	if offset >= total {
		return []student.Student{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (f *fakeRepo) FindByNameContains(ctx context.Context, name string) ([]student.Student, error) {
	return f.filter(func(s student.Student) bool {
		return strings.Contains(s.Name, name)
	}), nil
}

func (f *fakeRepo) FindByClassName(ctx context.Context, className string) ([]student.Student, error) {
	return f.filter(func(s student.Student) bool {
		return s.ClassName == className
	}), nil
}

func (f *fakeRepo) FindByClassNameOrderByName(ctx context.Context, className string) ([]student.Student, error) {
	matched := f.filter(func(s student.Student) bool {
		return s.ClassName == className
	})
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	return matched, nil
}

func (f *fakeRepo) FindByMajor(ctx context.Context, major string) ([]student.Student, error) {
	return f.filter(func(s student.Student) bool {
		return s.Major == major
	}), nil
}

func (f *fakeRepo) FindByGender(ctx context.Context, gender student.Gender) ([]student.Student, error) {
	return f.filter(func(s student.Student) bool {
		return s.Gender == gender
	}), nil
}

func (f *fakeRepo) FindByAgeRange(ctx context.Context, minAge, maxAge int) ([]student.Student, error) {
	return f.filter(func(s student.Student) bool {
		return s.Age >= minAge && s.Age <= maxAge
	}), nil
}

func (f *fakeRepo) FindByClassAndMajor(ctx context.Context, className, major string) ([]student.Student, error) {
	return f.filter(func(s student.Student) bool {
		return s.ClassName == className && s.Major == major
	}), nil
}

func (f *fakeRepo) FindByCreateTimeBetween(ctx context.Context, start, end time.Time) ([]student.Student, error) {
	return f.filter(func(s student.Student) bool {
		return !s.CreateTime.Before(start) && !s.CreateTime.After(end)
	}), nil
}

func (f *fakeRepo) FindOldestByMajor(ctx context.Context, major string) ([]student.Student, error) {
	inMajor := f.filter(func(s student.Student) bool {
		return s.Major == major
	})
	maxAge := 0
	for _, s := range inMajor {
		if s.Age > maxAge {
			maxAge = s.Age
		}
	}
	oldest := make([]student.Student, 0)
	for _, s := range inMajor {
		if s.Age == maxAge {
			oldest = append(oldest, s)
		}
	}
	return oldest, nil
}

func (f *fakeRepo) SearchByKeyword(ctx context.Context, keyword string) ([]student.Student, error) {
	return f.filter(func(s student.Student) bool {
		return strings.Contains(s.Name, keyword) || strings.Contains(s.Email, keyword)
	}), nil
}

func (f *fakeRepo) Count(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records), nil
}

func (f *fakeRepo) CountByClassName(ctx context.Context, className string) (int, error) {
	return len(f.filter(func(s student.Student) bool { return s.ClassName == className })), nil
}

func (f *fakeRepo) CountByMajor(ctx context.Context, major string) (int, error) {
	return len(f.filter(func(s student.Student) bool { return s.Major == major })), nil
}

func (f *fakeRepo) CountGroupedByMajor(ctx context.Context) ([]student.MajorCount, error) {
	counts := make(map[string]int)
	for _, s := range f.filter(func(student.Student) bool { return true }) {
		counts[s.Major]++
	}
	rows := make([]student.MajorCount, 0, len(counts))
	for major, count := range counts {
		rows = append(rows, student.MajorCount{Major: major, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Major < rows[j].Major })
	return rows, nil
}

func (f *fakeRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range f.records {
		if s.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) ExistsByID(ctx context.Context, id int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, ok := f.records[id]
	return ok, nil
}

func (f *fakeRepo) filter(keep func(student.Student) bool) []student.Student {
	f.mu.Lock()
	defer f.mu.Unlock()

	matched := make([]student.Student, 0)
	for _, s := range f.records {
		if keep(s) {
			matched = append(matched, s)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return matched
}

// spyPublisher records published events.
type spyPublisher struct {
	mu     sync.Mutex
	events []student.Event
}

func (p *spyPublisher) Publish(ctx context.Context, key string, value interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event, ok := value.(student.Event); ok {
		p.events = append(p.events, event)
	}
	return nil
}

func (p *spyPublisher) Close() error { return nil }

func (p *spyPublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	types := make([]string, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}
