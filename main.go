package main

import (
	"log"

	"grantlink/config"
	"grantlink/models"
	"grantlink/routes"
	"grantlink/services"
)

func main() {
	// 初始化数据库
	config.InitDB()
	config.InitRedis()
	// 自动迁移
	models.Migrate()

	// 离线通知队列
	services.InitNotifyQueue()
	go services.RunNotifyWorker()

	// 注册路由
	r := routes.RegisterRoutes()

	// 启动服务
	if err := r.Run(":8082"); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
