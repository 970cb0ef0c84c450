package service

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/chronomesh/timechunk/src/authors"
	"github.com/chronomesh/timechunk/src/chunk"
	"github.com/sirupsen/logrus"
)

// Service exposes a read-only HTTP API over the local index.
type Service struct {
	sync.Mutex

	bindAddress string
	index       *chunk.Index
	author      *authors.Author
	logger      *logrus.Entry
}

// NewService instantiates the service and registers its handlers.
func NewService(bindAddress string, index *chunk.Index, author *authors.Author, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		index:       index,
		author:      author,
		logger:      logger,
	}

	service.registerHandlers()

	return &service
}

// registerHandlers registers the API handlers with the DefaultServerMux of the
// http package. It is possible that another server in the same process is
// simultaneously using the DefaultServerMux. In which case, the handlers will
// be accessible from both servers. This is usefull when timechunk is used
// in-memory and expected to use the same endpoint (address:port) as the
// application's API.
func (s *Service) registerHandlers() {
	s.logger.Debug("Registering timechunk API handlers")
	http.HandleFunc("/stats", s.makeHandler(s.GetStats))
	http.HandleFunc("/chunks/current", s.makeHandler(s.GetCurrentChunk))
	http.HandleFunc("/chunks/latest", s.makeHandler(s.GetLatestChunk))
	http.HandleFunc("/chunks", s.makeHandler(s.GetChunks))
	http.HandleFunc("/links/", s.makeHandler(s.GetLinks))
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Serve calls ListenAndServe. This is a blocking call. It is not necessary to
// call Serve when timechunk is used in-memory and another server has already
// been started with the DefaultServerMux and the same address:port
// combination. Indeed, timechunk API handlers have already been registered
// when the service was instantiated.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving timechunk API")

	// Use the DefaultServerMux
	err := http.ListenAndServe(s.bindAddress, nil)
	if err != nil {
		s.logger.Error(err)
	}
}

/*******************************************************************************
JSON shapes
*******************************************************************************/

type chunkJSON struct {
	Index int64     `json:"index"`
	From  time.Time `json:"from"`
	Until time.Time `json:"until"`
	Hash  string    `json:"hash"`
}

func toChunkJSON(c *chunk.Chunk) chunkJSON {
	return chunkJSON{
		Index: c.Index(),
		From:  c.From(),
		Until: c.Until(),
		Hash:  c.Hex(),
	}
}

type linkJSON struct {
	Hash       string    `json:"hash"`
	ChunkIndex int64     `json:"chunk_index"`
	Source     string    `json:"source"`
	Target     string    `json:"target"`
	Tag        string    `json:"tag,omitempty"`
	Author     string    `json:"author"`
	Seq        int       `json:"seq"`
	Timestamp  time.Time `json:"timestamp"`
	Signature  string    `json:"signature"`
}

func toLinkJSON(r *chunk.LinkRecord) linkJSON {
	return linkJSON{
		Hash:       r.Hex(),
		ChunkIndex: r.Body.ChunkIndex,
		Source:     r.Body.Source,
		Target:     r.Target(),
		Tag:        string(r.Body.Tag),
		Author:     r.Author(),
		Seq:        r.Seq(),
		Timestamp:  r.Timestamp(),
		Signature:  r.Signature,
	}
}

/*******************************************************************************
Handlers
*******************************************************************************/

// GetStats returns summary information about the local index.
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	params := s.index.Params()

	stats := map[string]string{
		"author":             s.author.PubKeyHex,
		"moniker":            s.author.Moniker,
		"last_chunk_index":   strconv.FormatInt(s.index.Store().LastChunkIndex(), 10),
		"current_index":      strconv.FormatInt(params.IndexAt(time.Now()), 10),
		"chunk_interval":     params.MaxChunkInterval.String(),
		"direct_link_limit":  strconv.Itoa(params.DirectChunkLinkLimit),
		"enforce_spam_limit": strconv.Itoa(params.EnforceSpamLimit),
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(stats)
}

// GetCurrentChunk returns the chunk entry for the window containing now, or
// 404 when nobody has linked inside that window yet.
func (s *Service) GetCurrentChunk(w http.ResponseWriter, r *http.Request) {
	c, ok, err := s.index.CurrentChunk(time.Now())
	s.returnChunk(w, c, ok, err)
}

// GetLatestChunk returns the most recent committed chunk, or 404 when the
// index is empty.
func (s *Service) GetLatestChunk(w http.ResponseWriter, r *http.Request) {
	c, ok, err := s.index.LatestChunk(time.Now())
	s.returnChunk(w, c, ok, err)
}

func (s *Service) returnChunk(w http.ResponseWriter, c *chunk.Chunk, ok bool, err error) {
	if err != nil {
		s.logger.WithError(err).Error("Retrieving chunk")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "no chunk", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(toChunkJSON(c))
}

// GetChunks returns the committed chunks whose windows intersect the RFC3339
// time span given by the start and end query parameters.
func (s *Service) GetChunks(w http.ResponseWriter, r *http.Request) {
	start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
	if err != nil {
		http.Error(w, "bad start parameter: "+err.Error(), http.StatusBadRequest)
		return
	}
	end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
	if err != nil {
		http.Error(w, "bad end parameter: "+err.Error(), http.StatusBadRequest)
		return
	}

	res := []chunkJSON{}
	it := s.index.ChunksForTimeSpan(start, end)
	for {
		c, err := it.Next()
		if err != nil {
			s.logger.WithError(err).Error("Walking time span")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if c == nil {
			break
		}
		res = append(res, toChunkJSON(c))
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(res)
}

// GetLinks returns the link records rooted at the chunk whose window index is
// given in the path, optionally restricted by a tag query parameter.
func (s *Service) GetLinks(w http.ResponseWriter, r *http.Request) {
	param := r.URL.Path[len("/links/"):]

	chunkIndex, err := strconv.ParseInt(param, 10, 64)
	if err != nil {
		s.logger.WithError(err).Errorf("Parsing chunk_index parameter %s", param)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	c, err := s.index.Store().GetChunk(chunkIndex)
	if err != nil {
		s.logger.WithError(err).Errorf("Retrieving chunk %d", chunkIndex)
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	var tag []byte
	if t := r.URL.Query().Get("tag"); t != "" {
		tag = []byte(t)
	}

	recs, err := s.index.ChunkLinks(c, tag)
	if err != nil {
		s.logger.WithError(err).Errorf("Retrieving links of chunk %d", chunkIndex)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	res := make([]linkJSON, len(recs))
	for i, rec := range recs {
		res[i] = toLinkJSON(rec)
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(res)
}
