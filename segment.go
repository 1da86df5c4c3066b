/*
Copyright © 2026 the FUTURES authors.
This file is part of FUTURES.

FUTURES is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

FUTURES is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with FUTURES.  If not, see <http://www.gnu.org/licenses/>.
*/

package futures

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	_ "modernc.org/sqlite"
)

// Null is the no-data sentinel stored in raster layers. Cells whose
// value is Null are excluded from the simulation entirely.
func Null() float64 { return math.NaN() }

// IsNull reports whether a layer value is the no-data sentinel.
func IsNull(v float64) bool { return math.IsNaN(v) }

// SegmentConfig specifies the tiling and caching policy for raster
// layers. The policy affects memory use and speed but not results.
type SegmentConfig struct {
	// TileRows and TileCols give the dimensions of one tile.
	TileRows, TileCols int

	// MaxResident is the maximum number of tiles a layer keeps in
	// memory at once. If it is <= 0 the layer is fully memory
	// resident and tiles are only written out on Flush.
	MaxResident int

	// Path is the location of the durable tile store backing evicted
	// and flushed tiles. If it is empty an in-process store is used,
	// which restricts the simulation to grids that fit in memory.
	Path string
}

// LayerSet manages the storage shared by a group of raster layers with
// common dimensions and tiling parameters.
type LayerSet struct {
	rows, cols int
	cfg        SegmentConfig
	store      tileStore
	segments   []*Segment
}

// NewLayerSet creates the backing storage for raster layers with the
// given shared dimensions.
func NewLayerSet(rows, cols int, cfg SegmentConfig) (*LayerSet, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("futures: invalid layer dimensions %d×%d", rows, cols)
	}
	if cfg.TileRows <= 0 {
		cfg.TileRows = 64
	}
	if cfg.TileCols <= 0 {
		cfg.TileCols = 64
	}
	var store tileStore
	var err error
	if cfg.Path == "" {
		store = newMemoryTileStore()
	} else {
		store, err = newSQLiteTileStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("futures: creating layer backing store: %v", err)
		}
	}
	return &LayerSet{rows: rows, cols: cols, cfg: cfg, store: store}, nil
}

// Rows returns the number of raster rows.
func (ls *LayerSet) Rows() int { return ls.rows }

// Cols returns the number of raster columns.
func (ls *LayerSet) Cols() int { return ls.cols }

// Open creates a raster layer with the given name holding perCell
// values per cell, initialized to Null.
func (ls *LayerSet) Open(name string, perCell int) (*Segment, error) {
	if perCell <= 0 {
		return nil, fmt.Errorf("futures: layer %s: invalid values per cell %d", name, perCell)
	}
	for _, s := range ls.segments {
		if s.name == name {
			return nil, fmt.Errorf("futures: layer %s is already open", name)
		}
	}
	tilesAcross := (ls.cols + ls.cfg.TileCols - 1) / ls.cfg.TileCols
	tilesDown := (ls.rows + ls.cfg.TileRows - 1) / ls.cfg.TileRows
	s := &Segment{
		set:         ls,
		name:        name,
		perCell:     perCell,
		tilesAcross: tilesAcross,
		numTiles:    tilesAcross * tilesDown,
		resident:    make(map[int]*tile),
	}
	ls.segments = append(ls.segments, s)
	return s, nil
}

// Close flushes and closes all layers and the backing store.
func (ls *LayerSet) Close() error {
	for _, s := range ls.segments {
		if err := s.Flush(); err != nil {
			return err
		}
	}
	ls.segments = nil
	return ls.store.Close()
}

// Segment is one tiled raster layer. All access is by (row, col); the
// resident-tile cache and the durable backing store are internal.
type Segment struct {
	set         *LayerSet
	name        string
	perCell     int
	tilesAcross int
	numTiles    int
	resident    map[int]*tile
	clock       int64
}

type tile struct {
	vals    []float64
	dirty   bool
	lastUse int64
}

// Name returns the layer name.
func (s *Segment) Name() string { return s.name }

// PerCell returns the number of values stored per cell.
func (s *Segment) PerCell() int { return s.perCell }

// Get returns the value at (row, col) for a single-valued layer.
func (s *Segment) Get(row, col int) (float64, error) {
	t, off, err := s.locate(row, col)
	if err != nil {
		return 0, err
	}
	return t.vals[off], nil
}

// Put stores a value at (row, col) in a single-valued layer. The
// mutation is local to the addressed cell.
func (s *Segment) Put(row, col int, v float64) error {
	t, off, err := s.locate(row, col)
	if err != nil {
		return err
	}
	t.vals[off] = v
	t.dirty = true
	return nil
}

// GetVec copies the perCell values at (row, col) into dst, which must
// have length perCell.
func (s *Segment) GetVec(row, col int, dst []float64) error {
	if len(dst) != s.perCell {
		return fmt.Errorf("futures: layer %s: destination length %d != %d values per cell",
			s.name, len(dst), s.perCell)
	}
	t, off, err := s.locate(row, col)
	if err != nil {
		return err
	}
	copy(dst, t.vals[off:off+s.perCell])
	return nil
}

// PutVec stores the perCell values at (row, col).
func (s *Segment) PutVec(row, col int, src []float64) error {
	if len(src) != s.perCell {
		return fmt.Errorf("futures: layer %s: source length %d != %d values per cell",
			s.name, len(src), s.perCell)
	}
	t, off, err := s.locate(row, col)
	if err != nil {
		return err
	}
	copy(t.vals[off:off+s.perCell], src)
	t.dirty = true
	return nil
}

// Flush writes all dirty resident tiles to the durable backing store.
// It must be called before any reader outside this Segment's view may
// observe the layer contents.
func (s *Segment) Flush() error {
	for index, t := range s.resident {
		if !t.dirty {
			continue
		}
		if err := s.set.store.write(s.name, index, t.vals); err != nil {
			return fmt.Errorf("futures: layer %s: flushing tile %d: %v", s.name, index, err)
		}
		t.dirty = false
	}
	return nil
}

// locate returns the resident tile containing (row, col) and the
// offset of that cell's first value within it.
func (s *Segment) locate(row, col int) (*tile, int, error) {
	if row < 0 || row >= s.set.rows || col < 0 || col >= s.set.cols {
		return nil, 0, fmt.Errorf("futures: layer %s: cell (%d, %d) out of bounds (%d×%d)",
			s.name, row, col, s.set.rows, s.set.cols)
	}
	tr, tc := row/s.set.cfg.TileRows, col/s.set.cfg.TileCols
	index := tr*s.tilesAcross + tc
	t, ok := s.resident[index]
	if !ok {
		var err error
		t, err = s.fetch(index)
		if err != nil {
			return nil, 0, err
		}
	}
	s.clock++
	t.lastUse = s.clock
	off := ((row-tr*s.set.cfg.TileRows)*s.set.cfg.TileCols + (col - tc*s.set.cfg.TileCols)) * s.perCell
	return t, off, nil
}

// fetch brings a tile into residency, evicting the least recently
// used tile first if the layer is over its residency budget.
func (s *Segment) fetch(index int) (*tile, error) {
	if s.set.cfg.MaxResident > 0 && len(s.resident) >= s.set.cfg.MaxResident {
		if err := s.evict(); err != nil {
			return nil, err
		}
	}
	vals := make([]float64, s.set.cfg.TileRows*s.set.cfg.TileCols*s.perCell)
	ok, err := s.set.store.read(s.name, index, vals)
	if err != nil {
		return nil, fmt.Errorf("futures: layer %s: reading tile %d: %v", s.name, index, err)
	}
	if !ok {
		for i := range vals {
			vals[i] = math.NaN()
		}
	}
	t := &tile{vals: vals}
	s.resident[index] = t
	return t, nil
}

func (s *Segment) evict() error {
	victim := -1
	var oldest int64 = math.MaxInt64
	for index, t := range s.resident {
		if t.lastUse < oldest {
			oldest = t.lastUse
			victim = index
		}
	}
	if victim < 0 {
		return nil
	}
	t := s.resident[victim]
	if t.dirty {
		if err := s.set.store.write(s.name, victim, t.vals); err != nil {
			return fmt.Errorf("futures: layer %s: evicting tile %d: %v", s.name, victim, err)
		}
	}
	delete(s.resident, victim)
	return nil
}

// tileStore is the durable backing for evicted and flushed tiles.
type tileStore interface {
	// read fills dst with the stored tile, reporting whether the
	// tile has ever been written.
	read(layer string, index int, dst []float64) (bool, error)
	write(layer string, index int, vals []float64) error
	Close() error
}

// memoryTileStore backs tiles with process memory, for grids small
// enough to be held resident.
type memoryTileStore struct {
	tiles map[string]map[int][]float64
}

func newMemoryTileStore() *memoryTileStore {
	return &memoryTileStore{tiles: make(map[string]map[int][]float64)}
}

func (m *memoryTileStore) read(layer string, index int, dst []float64) (bool, error) {
	vals, ok := m.tiles[layer][index]
	if !ok {
		return false, nil
	}
	copy(dst, vals)
	return true, nil
}

func (m *memoryTileStore) write(layer string, index int, vals []float64) error {
	l, ok := m.tiles[layer]
	if !ok {
		l = make(map[int][]float64)
		m.tiles[layer] = l
	}
	stored := make([]float64, len(vals))
	copy(stored, vals)
	l[index] = stored
	return nil
}

func (m *memoryTileStore) Close() error {
	m.tiles = nil
	return nil
}

// sqliteTileStore backs tiles with a SQLite database so layers may be
// larger than resident memory and flushed tiles are durable.
type sqliteTileStore struct {
	db *sql.DB
}

func newSQLiteTileStore(path string) (*sqliteTileStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS tiles (
			layer TEXT NOT NULL,
			tile INTEGER NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (layer, tile)
		)`)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &sqliteTileStore{db: db}, nil
}

func (s *sqliteTileStore) read(layer string, index int, dst []float64) (bool, error) {
	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM tiles WHERE layer = ? AND tile = ?`,
		layer, index).Scan(&payload)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(payload) != 8*len(dst) {
		return false, fmt.Errorf("tile %s/%d: payload is %d bytes, want %d",
			layer, index, len(payload), 8*len(dst))
	}
	for i := range dst {
		dst[i] = math.Float64frombits(binary.LittleEndian.Uint64(payload[8*i:]))
	}
	return true, nil
}

func (s *sqliteTileStore) write(layer string, index int, vals []float64) error {
	payload := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(payload[8*i:], math.Float64bits(v))
	}
	_, err := s.db.Exec(`
		INSERT INTO tiles (layer, tile, payload) VALUES (?, ?, ?)
		ON CONFLICT (layer, tile) DO UPDATE SET payload = excluded.payload`,
		layer, index, payload)
	return err
}

func (s *sqliteTileStore) Close() error {
	return s.db.Close()
}
