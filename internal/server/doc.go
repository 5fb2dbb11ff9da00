// 版权所有 2024 ClubCMS Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 提供 HTTP 服务器生命周期管理：非阻塞启动、优雅关闭
与异步错误传播。

Manager 不监听系统信号。进程级关闭由 shutdown.Coordinator 统一
调度，Manager.Shutdown 作为其中一个清理步骤注册；Errors() 上的
错误由调用方转交给 Coordinator.Trigger。

API 服务与 /metrics 服务各使用一个 Manager，通过 Config.Name 在
日志中区分。
*/
package server
