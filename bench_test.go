package cxxref

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// benchSource is a realistic C++ file with records, methods, enums, globals
// and calls for exercising the full indexing pipeline.
const benchSource = `
enum class Level { Debug, Info, Warn };

int verbosity = 0;

struct Message {
    int id;
    int size;
    Level level;
    int weight() const { return id * size; }
};

class Queue {
public:
    Queue(int capacity) : cap(capacity) {}
    void push(Message* m);
    Message* pop();
    int length();
private:
    int cap;
    int count;
    Message* items[64];
};

void Queue::push(Message* m) {
    if (count < cap) {
        items[count] = m;
        count++;
    }
    verbosity++;
}

Message* Queue::pop() {
    if (count == 0) {
        return nullptr;
    }
    count--;
    return items[count];
}

int Queue::length() {
    return count;
}

int drain(Queue& q) {
    int total = 0;
    for (Message* m = q.pop(); m != nullptr; m = q.pop()) {
        total += m->weight();
        if (m->level == Level::Warn) {
            verbosity = 2;
        }
        delete m;
    }
    return total;
}

int run() {
    Queue q(16);
    for (int i = 0; i < 10; i++) {
        Message* m = new Message();
        m->id = i;
        m->size = i * 2;
        q.push(m);
    }
    return drain(q);
}
`

func writeBenchFiles(b *testing.B, dir string, n int) []string {
	b.Helper()
	var paths []string
	for i := 0; i < n; i++ {
		// Rename the entry point so files do not collapse onto one node.
		src := strings.Replace(benchSource, "int run()", fmt.Sprintf("int run%d()", i), 1)
		path := filepath.Join(dir, fmt.Sprintf("bench%d.cpp", i))
		if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
			b.Fatal(err)
		}
		paths = append(paths, path)
	}
	return paths
}

func benchmarkIndex(b *testing.B, parallel bool) {
	ctx := context.Background()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		dir := b.TempDir()
		paths := writeBenchFiles(b, dir, 16)
		e, err := New(filepath.Join(dir, "bench.db"), WithParallel(parallel))
		if err != nil {
			b.Fatal(err)
		}
		b.StartTimer()

		if _, err := e.IndexFiles(ctx, paths); err != nil {
			e.Close()
			b.Fatal(err)
		}

		b.StopTimer()
		e.Close()
		b.StartTimer()
	}
}

func BenchmarkIndexFiles_Serial(b *testing.B)   { benchmarkIndex(b, false) }
func BenchmarkIndexFiles_Parallel(b *testing.B) { benchmarkIndex(b, true) }

// BenchmarkQueryCallees measures the query path only.
func BenchmarkQueryCallees(b *testing.B) {
	dir := b.TempDir()
	paths := writeBenchFiles(b, dir, 1)
	e, err := New(filepath.Join(dir, "bench.db"))
	if err != nil {
		b.Fatal(err)
	}
	defer e.Close()
	if _, err := e.IndexFiles(context.Background(), paths); err != nil {
		b.Fatal(err)
	}
	q := e.Query()
	nodes, err := q.Symbols("run0")
	if err != nil || len(nodes) == 0 {
		b.Fatalf("run0 not indexed: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := q.TransitiveCallees(nodes[0].ID, 5); err != nil {
			b.Fatal(err)
		}
	}
}
