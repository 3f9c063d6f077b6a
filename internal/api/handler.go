package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ioogle/evm-tx-sampler/pkg/logger"
	"github.com/sirupsen/logrus"
)

const (
	StatusFailure = 0
	StatusSuccess = 1

	// failureMessage is all a caller learns about a failed request; details are logged
	failureMessage = "request failed"
)

// Response envelope returned by every API route
type Response struct {
	Status int         `json:"status"`
	Error  string      `json:"error,omitempty"`
	Data   interface{} `json:"data,omitempty"`
}

// ChainInfo configured chain exposed to clients
type ChainInfo struct {
	Name        string `json:"name"`
	Alias       string `json:"alias"`
	ChainID     uint64 `json:"chain_id"`
	ExplorerURL string `json:"explorer_url"`
}

type addressQuery struct {
	Chain   string `form:"chain" binding:"required"`
	Address string `form:"address" binding:"required"`
}

type transactionQuery struct {
	Chain string `form:"chain" binding:"required"`
	Hash  string `form:"hash" binding:"required"`
}

func success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Status: StatusSuccess, Data: data})
}

// failure logs err with the request fields and answers with the generic envelope
func failure(c *gin.Context, fields logrus.Fields, err error) {
	fields["path"] = c.Request.URL.Path
	logger.WithError(err).WithFields(fields).Error("API request failed")
	c.JSON(http.StatusOK, Response{Status: StatusFailure, Error: failureMessage})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// sample returns one summary per distinct call selector of an address
func (s *Server) sample(c *gin.Context) {
	var q addressQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		failure(c, logrus.Fields{}, err)
		return
	}
	fields := logrus.Fields{"chain": q.Chain, "address": q.Address}

	handle, err := s.services.Chains.Get(q.Chain)
	if err != nil {
		failure(c, fields, err)
		return
	}

	items, err := s.services.Sampler.Sample(c.Request.Context(), handle, q.Address)
	if err != nil {
		failure(c, fields, err)
		return
	}
	success(c, items)
}

func (s *Server) proxy(c *gin.Context) {
	var q addressQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		failure(c, logrus.Fields{}, err)
		return
	}
	fields := logrus.Fields{"chain": q.Chain, "address": q.Address}

	handle, err := s.services.Chains.Get(q.Chain)
	if err != nil {
		failure(c, fields, err)
		return
	}

	result, err := s.services.Proxies.Resolve(c.Request.Context(), handle, q.Address)
	if err != nil {
		failure(c, fields, err)
		return
	}
	success(c, result)
}

func (s *Server) transaction(c *gin.Context) {
	var q transactionQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		failure(c, logrus.Fields{}, err)
		return
	}
	fields := logrus.Fields{"chain": q.Chain, "tx_hash": q.Hash}

	handle, err := s.services.Chains.Get(q.Chain)
	if err != nil {
		failure(c, fields, err)
		return
	}

	tx, err := s.services.Transactions.Hydrate(c.Request.Context(), handle, q.Hash)
	if err != nil {
		failure(c, fields, err)
		return
	}
	success(c, tx)
}

func (s *Server) chains(c *gin.Context) {
	handles := s.services.Chains.All()
	out := make([]ChainInfo, 0, len(handles))
	for _, h := range handles {
		out = append(out, ChainInfo{
			Name:        h.Name(),
			Alias:       h.Alias(),
			ChainID:     h.ID(),
			ExplorerURL: h.ExplorerURL(),
		})
	}
	success(c, out)
}
