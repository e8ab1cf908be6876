package handler

import "stockchat/internal/model"

type HistoryResponse struct {
	User    string       `json:"user"`
	History []model.Turn `json:"history"`
}
