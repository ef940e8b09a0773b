// Package api 暴露评测服务的 REST 接口：任务的提交、查询、统计，
// 以及对既有体素平面扫描的离线打分。
package api
