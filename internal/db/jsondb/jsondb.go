// Package jsondb implements the storage contract on top of an in-process
// cache that is persisted to a JSON file after every mutation.
// With an empty file name nothing is persisted, which is how the
// memorystorage package reuses it.
package jsondb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/thoas/go-funk"

	"github.com/patric-chuzhbe/securevault/internal/models"
	"github.com/patric-chuzhbe/securevault/internal/user"
)

type JSONDB struct {
	fileName string
	mu       sync.RWMutex
	Cache    CacheStruct
}

type CacheStruct struct {
	Users         map[string]*user.User      `json:"users"`
	EmailToUserID map[string]string          `json:"email_to_user_id"`
	Sessions      map[string]*models.Session `json:"sessions"`

	// Entries are kept in insertion order.
	Entries models.PasswordEntries `json:"entries"`
}

// NewCache returns an empty, ready to use cache.
func NewCache() CacheStruct {
	return CacheStruct{
		Users:         map[string]*user.User{},
		EmailToUserID: map[string]string{},
		Sessions:      map[string]*models.Session{},
		Entries:       models.PasswordEntries{},
	}
}

func (c *CacheStruct) fillNilMaps() {
	if c.Users == nil {
		c.Users = map[string]*user.User{}
	}
	if c.EmailToUserID == nil {
		c.EmailToUserID = map[string]string{}
	}
	if c.Sessions == nil {
		c.Sessions = map[string]*models.Session{}
	}
	if c.Entries == nil {
		c.Entries = models.PasswordEntries{}
	}
}

func initDBFile(fileName string) error {
	return writeToJSONFile(fileName, NewCache())
}

func writeToJSONFile(fileName string, cache interface{}) error {
	jsonData, err := json.MarshalIndent(cache, "", "\t")
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %w", err)
	}

	file, err := os.OpenFile(fileName, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0600)
	if err != nil {
		return fmt.Errorf("error opening file: %w", err)
	}
	defer file.Close()

	_, err = file.Write(jsonData)
	if err != nil {
		return fmt.Errorf("error writing to file: %w", err)
	}

	return nil
}

func parseJSONFile(fileName string, cache *CacheStruct) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	err = decoder.Decode(cache)
	if err != nil {
		return err
	}
	cache.fillNilMaps()

	return nil
}

// New opens (creating when missing) the JSON database stored in fileName.
func New(fileName string) (*JSONDB, error) {
	db := &JSONDB{
		fileName: fileName,
		Cache:    NewCache(),
	}

	err := parseJSONFile(db.fileName, &db.Cache)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		err := initDBFile(fileName)
		if err != nil {
			return nil, err
		}
		err = parseJSONFile(db.fileName, &db.Cache)
		if err != nil {
			return nil, err
		}
	}

	return db, nil
}

// NewInMemory returns a JSONDB that never touches the filesystem.
func NewInMemory() *JSONDB {
	return &JSONDB{Cache: NewCache()}
}

// persist must be called with mu held.
func (db *JSONDB) persist() error {
	if db.fileName == "" {
		return nil
	}

	return writeToJSONFile(db.fileName, db.Cache)
}

func (db *JSONDB) Ping(ctx context.Context) error {
	return nil
}

func (db *JSONDB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.persist()
}

func (db *JSONDB) CreateUser(ctx context.Context, usr *user.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, taken := db.Cache.EmailToUserID[usr.Email]; taken {
		return models.ErrEmailTaken
	}

	stored := *usr
	db.Cache.Users[usr.ID] = &stored
	db.Cache.EmailToUserID[usr.Email] = usr.ID

	if err := db.persist(); err != nil {
		delete(db.Cache.Users, usr.ID)
		delete(db.Cache.EmailToUserID, usr.Email)
		return err
	}

	return nil
}

func (db *JSONDB) GetUserByID(ctx context.Context, userID string) (*user.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	usr, found := db.Cache.Users[userID]
	if !found {
		return nil, models.ErrUserNotFound
	}
	result := *usr

	return &result, nil
}

func (db *JSONDB) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	db.mu.RLock()
	userID, found := db.Cache.EmailToUserID[email]
	db.mu.RUnlock()
	if !found {
		return nil, models.ErrUserNotFound
	}

	return db.GetUserByID(ctx, userID)
}

func (db *JSONDB) CreateSession(ctx context.Context, session *models.Session) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, found := db.Cache.Users[session.UserID]; !found {
		return models.ErrUserNotFound
	}
	stored := *session
	db.Cache.Sessions[session.ID] = &stored

	if err := db.persist(); err != nil {
		delete(db.Cache.Sessions, session.ID)
		return err
	}

	return nil
}

func (db *JSONDB) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	session, found := db.Cache.Sessions[sessionID]
	if !found {
		return nil, models.ErrSessionNotFound
	}
	result := *session

	return &result, nil
}

func (db *JSONDB) DeleteSession(ctx context.Context, sessionID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	session, found := db.Cache.Sessions[sessionID]
	if !found {
		return nil
	}
	delete(db.Cache.Sessions, sessionID)

	if err := db.persist(); err != nil {
		db.Cache.Sessions[sessionID] = session
		return err
	}

	return nil
}

func (db *JSONDB) DeleteExpiredSessions(ctx context.Context, now time.Time) ([]string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	expired := []string{}
	removed := map[string]*models.Session{}
	for id, session := range db.Cache.Sessions {
		if session.IsExpired(now) {
			expired = append(expired, id)
			removed[id] = session
		}
	}
	if len(expired) == 0 {
		return expired, nil
	}
	for _, id := range expired {
		delete(db.Cache.Sessions, id)
	}

	if err := db.persist(); err != nil {
		for id, session := range removed {
			db.Cache.Sessions[id] = session
		}
		return nil, err
	}

	return expired, nil
}

func (db *JSONDB) ListEntries(ctx context.Context, userID string) (models.PasswordEntries, error) {
	db.mu.RLock()
	owned := funk.Filter(db.Cache.Entries, func(entry models.PasswordEntry) bool {
		return entry.UserID == userID
	}).([]models.PasswordEntry)
	db.mu.RUnlock()

	// Reversing first makes the stable sort keep the latest insert first
	// among entries sharing a timestamp.
	result := models.PasswordEntries(funk.Reverse(owned).([]models.PasswordEntry))
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (db *JSONDB) InsertEntry(ctx context.Context, entry *models.PasswordEntry) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, found := db.Cache.Users[entry.UserID]; !found {
		return models.ErrUserNotFound
	}
	previous := db.Cache.Entries
	db.Cache.Entries = append(db.Cache.Entries, *entry)

	if err := db.persist(); err != nil {
		db.Cache.Entries = previous
		return err
	}

	return nil
}

func (db *JSONDB) DeleteEntry(ctx context.Context, userID, entryID string) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	index := -1
	for i, entry := range db.Cache.Entries {
		if entry.ID == entryID && entry.UserID == userID {
			index = i
			break
		}
	}
	if index < 0 {
		return false, nil
	}
	previous := db.Cache.Entries
	db.Cache.Entries = append(db.Cache.Entries[:index:index], db.Cache.Entries[index+1:]...)

	if err := db.persist(); err != nil {
		db.Cache.Entries = previous
		return false, err
	}

	return true, nil
}

func (db *JSONDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return int64(len(db.Cache.Users)), nil
}

func (db *JSONDB) GetNumberOfEntries(ctx context.Context) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return int64(len(db.Cache.Entries)), nil
}
